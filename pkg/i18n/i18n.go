// Package i18n translates user-facing API errors to Persian.
package i18n

import "strings"

var translations = map[string]string{
	"invalid request":             "درخواست نامعتبر است",
	"missing authorization token": "توکن احراز هویت ارسال نشده است",
	"invalid token":               "توکن نامعتبر است",
	"failed to validate user":     "خطا در اعتبارسنجی کاربر",
	"user not found":              "کاربر یافت نشد",
	"unauthorized":                "دسترسی غیرمجاز",
	"failed to fetch user":        "خطا در دریافت کاربر",

	"failed to fetch messages":     "خطا در دریافت پیام ها",
	"failed to create message":     "خطا در ایجاد پیام",
	"message not found":            "پیام یافت نشد",
	"failed to fetch message":      "خطا در دریافت پیام",
	"failed to update message":     "خطا در به روزرسانی پیام",
	"can only edit own messages":   "فقط پیام های خودتان قابل ویرایش است",
	"can only delete own messages": "فقط پیام های خودتان قابل حذف است",
	"failed to delete message":     "خطا در حذف پیام",
	"failed to react to message":   "خطا در ثبت واکنش",

	"friend request already exists":            "درخواست دوستی قبلا ارسال شده است",
	"friend request not found":                 "درخواست دوستی یافت نشد",
	"cannot send a friend request to yourself": "نمی توانید به خودتان درخواست دوستی بدهید",
	"failed to send friend request":            "خطا در ارسال درخواست دوستی",
	"failed to accept friend request":          "خطا در پذیرش درخواست دوستی",
	"failed to fetch friends":                  "خطا در دریافت دوستان",

	"push notifications disabled":   "اعلان ها غیرفعال است",
	"invalid subscription":          "اشتراک نامعتبر است",
	"subscription not found":        "اشتراک یافت نشد",
	"failed to save subscription":   "خطا در ذخیره اشتراک",
	"failed to remove subscription": "خطا در حذف اشتراک",

	"websocket upgrade failed": "خطا در برقراری اتصال وب سوکت",
	"rate limiter error":       "خطا در محدودسازی درخواست ها",
	"rate limit exceeded":      "تعداد درخواست ها بیش از حد مجاز است",
	"internal server error":    "خطای داخلی سرور",
	"service unavailable":      "سرویس در دسترس نیست",
	"not found":                "یافت نشد",

	"username must be between 3 and 32 characters":                "نام کاربری باید بین ۳ تا ۳۲ کاراکتر باشد",
	"username can only contain letters, numbers, and underscores": "نام کاربری فقط می تواند شامل حروف، اعداد و زیرخط باشد",
	"password must be at least 6 characters":                      "رمز عبور باید حداقل ۶ کاراکتر باشد",
	"username already exists":                                     "این نام کاربری قبلا ثبت شده است",
	"invalid username or password":                                "نام کاربری یا رمز عبور اشتباه است",
}

var prefixTranslations = map[string]string{
	"failed to hash password:":   "خطا در پردازش رمز عبور",
	"failed to register user:":   "خطا در ثبت نام کاربر",
	"failed to query user:":      "خطا در دریافت اطلاعات کاربر",
	"failed to generate token:":  "خطا در تولید توکن",
	"failed to sign token:":      "خطا در امضای توکن",
	"failed to parse token:":     "توکن نامعتبر است",
	"unexpected signing method:": "روش امضای توکن نامعتبر است",
}

// Translate returns the Persian text for message, or message itself when
// there is none.
func Translate(message string) string {
	if translated, ok := translations[message]; ok {
		return translated
	}
	for prefix, translated := range prefixTranslations {
		if strings.HasPrefix(message, prefix) {
			return translated
		}
	}
	return message
}
