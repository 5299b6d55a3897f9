package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	limitermemory "github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"github.com/4xmen/peyvand/internal/auth"
	"github.com/4xmen/peyvand/internal/errs"
	"github.com/4xmen/peyvand/internal/service"
	"github.com/4xmen/peyvand/internal/store"
	"github.com/4xmen/peyvand/internal/store/memory"
	"github.com/4xmen/peyvand/internal/ws"
)

var (
	testSvc      *service.Service
	testRegistry *ws.Registry
	testAuthSvc  *auth.Service
	testRouter   *gin.Engine
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// clearTestData rebuilds the stack over an empty store.
func clearTestData() {
	setupTestRouter(memory.New())
}

func setupTestRouter(s store.Store) {
	logger := zap.NewNop()
	testRegistry = ws.NewRegistry(logger)
	testSvc = service.New(s, testRegistry, time.Second)
	testAuthSvc = auth.New(testSvc.Users, "test-jwt-secret")

	testRouter = gin.New()
	testRouter.Use(PanicRecovery(logger))
	Routes{
		Auth:     NewAuthHandler(testAuthSvc, logger),
		Messages: NewMessageHandler(testSvc, testRegistry, logger),
		Friends:  NewFriendHandler(testSvc.Friends, logger),
		Push:     NewPushHandler(nil, logger),
		WebRTC:   NewWebRTCConfig("stun:stun.example.com:3478", "", "", ""),
	}.Register(testRouter)
}

func doJSON(method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	testRouter.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to decode %q: %v", w.Body.String(), err)
	}
	return v
}

// registerUser creates a user and returns its id and token.
func registerUser(t *testing.T, username string) (string, string) {
	t.Helper()
	user, err := testAuthSvc.Register(context.Background(), username, "password123")
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	token, err := testAuthSvc.GenerateToken(user.ID, user.Username)
	if err != nil {
		t.Fatalf("Failed to create token: %v", err)
	}
	return user.ID, token
}

func TestRegister(t *testing.T) {
	clearTestData()

	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
		wantError  bool
	}{
		{
			name:       "valid registration",
			body:       map[string]string{"username": "testuser", "password": "password123"},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "duplicate username",
			body:       map[string]string{"username": "testuser", "password": "password123"},
			wantStatus: http.StatusConflict,
			wantError:  true,
		},
		{
			name:       "short username",
			body:       map[string]string{"username": "ab", "password": "password123"},
			wantStatus: http.StatusBadRequest,
			wantError:  true,
		},
		{
			name:       "short password",
			body:       map[string]string{"username": "newuser", "password": "12345"},
			wantStatus: http.StatusBadRequest,
			wantError:  true,
		},
		{
			name:       "invalid username characters",
			body:       map[string]string{"username": "test@user", "password": "password123"},
			wantStatus: http.StatusBadRequest,
			wantError:  true,
		},
		{
			name:       "missing password",
			body:       map[string]string{"username": "someone"},
			wantStatus: http.StatusBadRequest,
			wantError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON("POST", "/api/auth/register", tt.body, "")
			if w.Code != tt.wantStatus {
				t.Errorf("Register() status = %d, want %d", w.Code, tt.wantStatus)
			}

			resp := decode[map[string]any](t, w)
			if tt.wantError {
				if _, ok := resp["error"]; !ok {
					t.Error("Expected error response")
				}
			} else {
				if _, ok := resp["token"]; !ok {
					t.Error("Expected token in response")
				}
				if _, ok := resp["user_id"]; !ok {
					t.Error("Expected user_id in response")
				}
			}
		})
	}
}

func TestRegisterErrorsAreTranslated(t *testing.T) {
	clearTestData()
	registerUser(t, "taken")

	w := doJSON("POST", "/api/auth/register", map[string]string{"username": "taken", "password": "password123"}, "")
	resp := decode[map[string]string](t, w)
	if resp["error"] != "این نام کاربری قبلا ثبت شده است" {
		t.Errorf("error = %q", resp["error"])
	}
}

func TestLogin(t *testing.T) {
	clearTestData()
	userID, _ := registerUser(t, "loginuser")

	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
	}{
		{"valid login", map[string]string{"username": "loginuser", "password": "password123"}, http.StatusOK},
		{"wrong password", map[string]string{"username": "loginuser", "password": "wrongpassword"}, http.StatusUnauthorized},
		{"non-existent user", map[string]string{"username": "nonexistent", "password": "password123"}, http.StatusUnauthorized},
		{"invalid body", map[string]string{"username": "loginuser"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON("POST", "/api/auth/login", tt.body, "")
			if w.Code != tt.wantStatus {
				t.Errorf("Login() status = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Code == http.StatusOK {
				resp := decode[AuthResponse](t, w)
				if resp.UserID != userID || resp.Token == "" {
					t.Errorf("Login() = %+v", resp)
				}
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	clearTestData()
	_, token := registerUser(t, "alice")
	ghost, _ := testAuthSvc.GenerateToken("no-such-user", "ghost")

	tests := []struct {
		name       string
		path       string
		token      string
		wantStatus int
	}{
		{"missing token", "/api/messages/m1", "", http.StatusUnauthorized},
		{"invalid token", "/api/messages/m1", "garbage", http.StatusUnauthorized},
		{"unknown user", "/api/messages/m1", ghost, http.StatusUnauthorized},
		{"valid header", "/api/messages/m1", token, http.StatusNotFound},
		{"valid query token", "/api/messages/m1?token=" + token, "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON("DELETE", tt.path, nil, tt.token)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestMessages(t *testing.T) {
	clearTestData()

	w := doJSON("POST", "/api/messages", map[string]string{
		"from_user_id": "U1", "from_username": "alice", "to_user_id": "U2", "message": "hi",
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("CreateMessage() status = %d, body %s", w.Code, w.Body.String())
	}
	created := decode[map[string]any](t, w)
	id := created["id"].(string)

	t.Run("conversation in either order", func(t *testing.T) {
		for _, path := range []string{"/api/messages/U1/U2", "/api/messages/U2/U1"} {
			msgs := decode[[]map[string]any](t, doJSON("GET", path, nil, ""))
			if len(msgs) != 1 || msgs[0]["message"] != "hi" || msgs[0]["read"] != false {
				t.Errorf("GET %s = %v", path, msgs)
			}
		}
	})

	t.Run("unrelated conversation is empty", func(t *testing.T) {
		w := doJSON("GET", "/api/messages/U1/U3", nil, "")
		if w.Body.String() != "[]" {
			t.Errorf("body = %s, want []", w.Body.String())
		}
	})

	t.Run("unread then read", func(t *testing.T) {
		unread := decode[[]map[string]any](t, doJSON("GET", "/api/messages/unread/U2", nil, ""))
		if len(unread) != 1 {
			t.Fatalf("unread = %v", unread)
		}

		w := doJSON("POST", "/api/messages/"+id+"/read", nil, "")
		if w.Code != http.StatusOK {
			t.Fatalf("MarkAsRead() status = %d", w.Code)
		}

		unread = decode[[]map[string]any](t, doJSON("GET", "/api/messages/unread/U2", nil, ""))
		if len(unread) != 0 {
			t.Errorf("unread after read = %v", unread)
		}
	})

	t.Run("mark unknown message", func(t *testing.T) {
		w := doJSON("POST", "/api/messages/missing/read", nil, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})

	t.Run("missing recipient", func(t *testing.T) {
		w := doJSON("POST", "/api/messages", map[string]string{"from_user_id": "U1", "from_username": "alice"}, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

type recordingTransport struct {
	mu   sync.Mutex
	sent []map[string]any
}

func (r *recordingTransport) Send(data []byte) error {
	var env map[string]any
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, env)
	return nil
}

func (r *recordingTransport) Receive() ([]byte, error) { return nil, errors.New("not readable") }
func (r *recordingTransport) Close() error             { return nil }

func (r *recordingTransport) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, env := range r.sent {
		if env["type"] != "users-update" {
			out = append(out, env["type"].(string))
		}
	}
	return out
}

func TestMessageOwnership(t *testing.T) {
	clearTestData()
	aliceID, aliceToken := registerUser(t, "alice")
	bobID, bobToken := registerUser(t, "bob")

	bobConn := &recordingTransport{}
	testRegistry.Connect(bobConn, bobID, "bob")

	created := decode[map[string]any](t, doJSON("POST", "/api/messages", map[string]string{
		"from_user_id": aliceID, "from_username": "alice", "to_user_id": bobID, "message": "helo",
	}, ""))
	path := "/api/messages/" + created["id"].(string)

	if w := doJSON("PUT", path, map[string]string{"message": "hacked"}, bobToken); w.Code != http.StatusForbidden {
		t.Errorf("edit by recipient status = %d, want 403", w.Code)
	}
	if w := doJSON("PUT", path, map[string]string{"message": "hello"}, aliceToken); w.Code != http.StatusOK {
		t.Errorf("edit by sender status = %d, want 200", w.Code)
	}

	w := doJSON("POST", path+"/react", map[string]string{"emoji": "👍"}, bobToken)
	reacted := decode[map[string]any](t, w)
	if got, _ := json.Marshal(reacted["reactions"]); string(got) != `{"👍":["`+bobID+`"]}` {
		t.Errorf("reactions = %s", got)
	}
	w = doJSON("POST", path+"/react", map[string]string{"emoji": "👍"}, bobToken)
	reacted = decode[map[string]any](t, w)
	if got, _ := json.Marshal(reacted["reactions"]); string(got) != `{}` {
		t.Errorf("reactions after toggling twice = %s", got)
	}

	if w := doJSON("DELETE", path, nil, bobToken); w.Code != http.StatusForbidden {
		t.Errorf("delete by recipient status = %d, want 403", w.Code)
	}
	if w := doJSON("DELETE", path, nil, aliceToken); w.Code != http.StatusOK {
		t.Errorf("delete by sender status = %d, want 200", w.Code)
	}

	msgs := decode[[]map[string]any](t, doJSON("GET", "/api/messages/"+aliceID+"/"+bobID, nil, ""))
	if len(msgs) != 1 || msgs[0]["message"] != "hello" || msgs[0]["deleted"] != true || msgs[0]["edited_at"] == nil {
		t.Errorf("stored message = %v", msgs)
	}

	want := []string{"receive-message", "edit-message", "message-reaction", "message-reaction", "delete-message"}
	if got := bobConn.types(); !equalStrings(got, want) {
		t.Errorf("bob received %v, want %v", got, want)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFriends(t *testing.T) {
	clearTestData()
	aliceID, _ := registerUser(t, "alice")
	bobID, _ := registerUser(t, "bob")

	request := func(to string) *httptest.ResponseRecorder {
		return doJSON("POST", "/api/friends/request", map[string]string{
			"from_user_id": aliceID, "from_username": "alice", "to_username": to,
		}, "")
	}

	w := request("bob")
	if resp := decode[map[string]any](t, w); w.Code != http.StatusOK || resp["status"] != "success" {
		t.Fatalf("SendRequest() = %d %v", w.Code, resp)
	}

	w = request("bob")
	if resp := decode[map[string]any](t, w); w.Code != http.StatusOK || resp["error"] == nil {
		t.Errorf("duplicate request = %d %v, want 200 with error", w.Code, resp)
	}
	if w := request("ghost"); w.Code != http.StatusNotFound {
		t.Errorf("request to unknown user status = %d, want 404", w.Code)
	}
	if w := request("alice"); w.Code != http.StatusBadRequest {
		t.Errorf("request to self status = %d, want 400", w.Code)
	}

	pending := decode[[]map[string]any](t, doJSON("GET", "/api/friends/requests/"+bobID, nil, ""))
	if len(pending) != 1 || pending[0]["user_id"] != aliceID {
		t.Fatalf("pending = %v", pending)
	}

	accept := map[string]string{"from_user_id": aliceID, "to_user_id": bobID}
	if w := doJSON("POST", "/api/friends/accept", accept, ""); w.Code != http.StatusOK {
		t.Fatalf("Accept() status = %d", w.Code)
	}
	if w := doJSON("POST", "/api/friends/accept", accept, ""); w.Code != http.StatusNotFound {
		t.Errorf("second Accept() status = %d, want 404", w.Code)
	}

	testRegistry.Connect(&recordingTransport{}, bobID, "bob")
	friends := decode[[]map[string]any](t, doJSON("GET", "/api/friends/"+aliceID, nil, ""))
	if len(friends) != 1 || friends[0]["friend_id"] != bobID || friends[0]["is_online"] != true {
		t.Errorf("alice's friends = %v", friends)
	}
	friends = decode[[]map[string]any](t, doJSON("GET", "/api/friends/"+bobID, nil, ""))
	if len(friends) != 1 || friends[0]["friend_username"] != "alice" || friends[0]["is_online"] != false {
		t.Errorf("bob's friends = %v", friends)
	}
}

// downStore fails every call as an unreachable backend would.
type downStore struct{}

func (downStore) Collection(string) store.Collection { return downCollection{} }
func (downStore) Backend() string                    { return "down" }
func (downStore) Close(context.Context) error        { return nil }

type downCollection struct{}

var errDown = errs.Unavailable("test", errors.New("connection refused"))

func (downCollection) FindOne(context.Context, store.Match) (store.Document, error) {
	return nil, errDown
}
func (downCollection) Find(context.Context, store.Filter) store.Cursor { return store.ErrCursor(errDown) }
func (downCollection) InsertOne(context.Context, store.Document) error { return errDown }
func (downCollection) UpdateOne(context.Context, store.Match, store.Set) (int64, error) {
	return 0, errDown
}

func TestUnavailableStore(t *testing.T) {
	setupTestRouter(downStore{})
	defer clearTestData()

	for _, path := range []string{"/api/messages/U1/U2", "/api/messages/unread/U1", "/api/friends/U1", "/api/friends/requests/U1"} {
		w := doJSON("GET", path, nil, "")
		if w.Code != http.StatusOK || w.Body.String() != "[]" {
			t.Errorf("GET %s = %d %s, want 200 []", path, w.Code, w.Body.String())
		}
	}

	w := doJSON("POST", "/api/messages", map[string]string{
		"from_user_id": "U1", "from_username": "alice", "to_user_id": "U2", "message": "hi",
	}, "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("CreateMessage() status = %d, want 500", w.Code)
	}

	w = doJSON("POST", "/api/auth/login", map[string]string{"username": "alice", "password": "password123"}, "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Login() status = %d, want 500", w.Code)
	}
}

func TestOnlineUsersAndConfig(t *testing.T) {
	clearTestData()

	if w := doJSON("GET", "/api/users/online", nil, ""); w.Body.String() != "[]" {
		t.Errorf("online users = %s, want []", w.Body.String())
	}
	testRegistry.Connect(&recordingTransport{}, "U1", "alice")
	users := decode[[]map[string]any](t, doJSON("GET", "/api/users/online", nil, ""))
	if len(users) != 1 || users[0]["username"] != "alice" {
		t.Errorf("online users = %v", users)
	}

	cfg := decode[map[string][]ICEServer](t, doJSON("GET", "/api/webrtc/config", nil, ""))
	if len(cfg["ice_servers"]) != 1 || cfg["ice_servers"][0].URLs[0] != "stun:stun.example.com:3478" {
		t.Errorf("webrtc config = %v", cfg)
	}

	if w := doJSON("GET", "/api/push/vapid-key", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("vapid key without push status = %d, want 404", w.Code)
	}
	if w := doJSON("GET", "/health", nil, ""); w.Code != http.StatusOK {
		t.Errorf("health status = %d", w.Code)
	}
	if w := doJSON("GET", "/nope", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d", w.Code)
	}
}

func TestNewWebRTCConfig(t *testing.T) {
	cfg := NewWebRTCConfig(" stun:a:3478, ,stun:b:3478", "turn:t:3478", "user", "pass")
	if len(cfg.servers) != 2 {
		t.Fatalf("servers = %v", cfg.servers)
	}
	if len(cfg.servers[0].URLs) != 2 || cfg.servers[1].Credential != "pass" {
		t.Errorf("servers = %+v", cfg.servers)
	}
	if empty := NewWebRTCConfig("", "", "", ""); empty.servers == nil || len(empty.servers) != 0 {
		t.Errorf("empty config = %#v", empty.servers)
	}
}

func TestRateLimit(t *testing.T) {
	router := gin.New()
	l := limiter.New(limitermemory.NewStore(), limiter.Rate{Period: time.Minute, Limit: 1})
	router.POST("/login", RateLimit(l), func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest("POST", "/login", nil))
	if first.Code != http.StatusOK || first.Header().Get("X-RateLimit-Limit") != "1" {
		t.Fatalf("first request = %d %v", first.Code, first.Header())
	}

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest("POST", "/login", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", second.Code)
	}
}

func TestPanicRecovery(t *testing.T) {
	router := gin.New()
	router.Use(ServerErrorLogger(zap.NewNop()), PanicRecovery(zap.NewNop()))
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if resp := decode[map[string]string](t, w); resp["error"] != "خطای داخلی سرور" {
		t.Errorf("error = %q", resp["error"])
	}
}

func TestCORS(t *testing.T) {
	router := gin.New()
	router.Use(CORS("https://chat.example.com"))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest("OPTIONS", "/x", nil)
	req.Header.Set("Origin", "https://chat.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "https://chat.example.com" {
		t.Errorf("preflight = %d %v", w.Code, w.Header())
	}

	req = httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Errorf("unexpected allow origin %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
}
