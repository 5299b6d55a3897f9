package i18n

import "testing"

func TestTranslate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"user not found", "کاربر یافت نشد"},
		{"failed to register user: backend unavailable", "خطا در ثبت نام کاربر"},
		{"failed to parse token: token is expired", "توکن نامعتبر است"},
		{"something else entirely", "something else entirely"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Translate(tt.in); got != tt.want {
			t.Errorf("Translate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
