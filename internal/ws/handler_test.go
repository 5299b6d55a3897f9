package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func setupServer(t *testing.T, origins string) (*httptest.Server, *relayFixture) {
	t.Helper()
	fx := newFixture(t)
	handler := NewHandler(fx.relay, origins, time.Minute, time.Minute, zap.NewNop())

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/ws/:user_id/:username", handler.HandleWebSocket)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, fx
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var env map[string]any
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("Failed to read %q: %v", typ, err)
		}
		if env["type"] == typ {
			return env
		}
	}
}

func TestWebSocketIntegration(t *testing.T) {
	server, fx := setupServer(t, "*")

	alice := dial(t, server, "/api/ws/U1/alice")
	readUntil(t, alice, "users-update")
	bob := dial(t, server, "/api/ws/U2/bob")
	env := readUntil(t, bob, "users-update")
	if n := len(env["users"].([]any)); n != 2 {
		t.Fatalf("Expected 2 users online, got %d", n)
	}

	err := alice.WriteJSON(map[string]any{"type": "send-message", "to_user_id": "U2", "message": "salam"})
	if err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}
	msg := readUntil(t, bob, "receive-message")["message"].(map[string]any)
	if msg["message"] != "salam" || msg["from_username"] != "alice" {
		t.Fatalf("Unexpected message: %v", msg)
	}

	fx.flush(t)
	conv, err := fx.svc.Messages.Conversation(context.Background(), "U1", "U2")
	if err != nil {
		t.Fatalf("Failed to load conversation: %v", err)
	}
	if len(conv) != 1 {
		t.Fatalf("Expected 1 stored message, got %d", len(conv))
	}

	alice.Close()
	env = readUntil(t, bob, "users-update")
	if n := len(env["users"].([]any)); n != 1 {
		t.Fatalf("Expected 1 user after disconnect, got %d", n)
	}
}

func TestWebSocketRejectsOrigin(t *testing.T) {
	server, _ := setupServer(t, "https://chat.example.com")

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws/U1/alice"
	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatal("Expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403, got %v", resp)
	}

	header.Set("Origin", "https://chat.example.com")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("Allowed origin rejected: %v", err)
	}
	conn.Close()
}
