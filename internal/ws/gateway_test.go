package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/Mascaro101/Echo-backend/internal/auth"
	"github.com/Mascaro101/Echo-backend/internal/chat"
	"github.com/Mascaro101/Echo-backend/internal/directory"
	"github.com/Mascaro101/Echo-backend/internal/models"
	"github.com/Mascaro101/Echo-backend/internal/store"
)

const readTimeout = 3 * time.Second

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st := store.NewMemory()
	authSvc := auth.NewService(st, "test-secret", bcrypt.MinCost, time.Hour)
	relay := chat.NewRelay(st, chat.NewSessions(), chat.NewRooms())
	gateway := NewGateway(authSvc, relay, directory.New(st), nil)

	srv := httptest.NewServer(http.HandlerFunc(gateway.ServeWS))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	if token != "" {
		url += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, eventType string, ack uint64, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteJSON(chat.Event{Type: eventType, Ack: ack, Payload: raw}); err != nil {
		t.Fatalf("write %s: %v", eventType, err)
	}
}

// readEvent reads until an event of the wanted type arrives, skipping
// unrelated pushes.
func readEvent(t *testing.T, conn *websocket.Conn, wantType string) chat.Event {
	t.Helper()
	deadline := time.Now().Add(readTimeout)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		var ev chat.Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("reading %s: %v", wantType, err)
		}
		if ev.Type == wantType {
			return ev
		}
	}
	t.Fatalf("no %s event within %v", wantType, readTimeout)
	return chat.Event{}
}

// readAck reads the ack with the given correlation number and decodes its
// {success, ...} payload.
func readAck(t *testing.T, conn *websocket.Conn, ack uint64) map[string]any {
	t.Helper()
	deadline := time.Now().Add(readTimeout)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		var ev chat.Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("reading ack %d: %v", ack, err)
		}
		if ev.Type == chat.EventAck && ev.Ack == ack {
			var body map[string]any
			if err := json.Unmarshal(ev.Payload, &body); err != nil {
				t.Fatal(err)
			}
			return body
		}
	}
	t.Fatalf("no ack %d within %v", ack, readTimeout)
	return nil
}

func testBundle() models.KeyBundle {
	return models.KeyBundle{
		PublicIdentityKeyX25519:  "x25519-pub",
		PublicIdentityKeyEd25519: "ed25519-pub",
		PublicSignedPreKey:       []string{"prekey-pub", "prekey-sig"},
	}
}

// registerAndLogin provisions a user over an unauthenticated connection and
// returns its id and a bearer token.
func registerAndLogin(t *testing.T, srv *httptest.Server, username, password string) (id, token string) {
	t.Helper()
	conn := dial(t, srv, "")
	defer conn.Close()

	sendEvent(t, conn, "register", 1, map[string]any{
		"username": username, "password": password, "keyBundle": testBundle(),
	})
	body := readAck(t, conn, 1)
	if body["success"] != true {
		t.Fatalf("register failed: %v", body)
	}
	id = body["id"].(string)

	sendEvent(t, conn, "login", 2, map[string]any{"username": username, "password": password})
	body = readAck(t, conn, 2)
	if body["success"] != true {
		t.Fatalf("login failed: %v", body)
	}
	return id, body["token"].(string)
}

func TestRegisterAndLoginOverUnauthenticatedConnection(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv, "")

	sendEvent(t, conn, "register", 1, map[string]any{
		"username": "alice", "password": "pw1", "keyBundle": testBundle(),
	})
	body := readAck(t, conn, 1)
	if body["success"] != true {
		t.Fatalf("register: %v", body)
	}
	id := body["id"].(string)
	if len(id) != 5 {
		t.Fatalf("id %q: wrong length", id)
	}

	sendEvent(t, conn, "login", 2, map[string]any{"username": "alice", "password": "pw1"})
	if body = readAck(t, conn, 2); body["success"] != true || body["token"] == "" {
		t.Fatalf("login: %v", body)
	}

	sendEvent(t, conn, "login", 3, map[string]any{"username": "alice", "password": "wrong"})
	if body = readAck(t, conn, 3); body["success"] != false {
		t.Fatalf("wrong password accepted: %v", body)
	}
}

func TestPrekeyBundleDistribution(t *testing.T) {
	srv := newTestServer(t)
	id, _ := registerAndLogin(t, srv, "alice", "pw1")

	// Bundle reads need no authentication: the asker may not even have an
	// account yet.
	conn := dial(t, srv, "")

	sendEvent(t, conn, "getSignedPreKey", 1, map[string]any{"targetUserId": id})
	body := readAck(t, conn, 1)
	if body["success"] != true || body["signedPreKey"] != "prekey-pub" || body["signature"] != "prekey-sig" {
		t.Fatalf("signed pre-key: %v", body)
	}

	sendEvent(t, conn, "getPublicIdentityKeyX25519", 2, map[string]any{"targetUserId": id})
	if body = readAck(t, conn, 2); body["publicIdentityKeyX25519"] != "x25519-pub" {
		t.Fatalf("x25519: %v", body)
	}

	sendEvent(t, conn, "getPublicIdentityKeyEd25519", 3, map[string]any{"targetUserId": id})
	if body = readAck(t, conn, 3); body["publicIdentityKeyEd25519"] != "ed25519-pub" {
		t.Fatalf("ed25519: %v", body)
	}

	sendEvent(t, conn, "fetchUsername", 4, id)
	if body = readAck(t, conn, 4); body["username"] != "alice" {
		t.Fatalf("fetchUsername: %v", body)
	}

	sendEvent(t, conn, "searchUser", 5, map[string]any{"searchTerm": "alice"})
	body = readAck(t, conn, 5)
	user, _ := body["user"].(map[string]any)
	if body["success"] != true || user["id"] != id {
		t.Fatalf("searchUser: %v", body)
	}

	sendEvent(t, conn, "getSignedPreKey", 6, map[string]any{"targetUserId": "ZZZZZ"})
	body = readAck(t, conn, 6)
	if body["success"] != false || body["error"] != "User not found" {
		t.Fatalf("unregistered id: %v", body)
	}
}

func TestOfflineDeliveryAndSeenFlow(t *testing.T) {
	srv := newTestServer(t)
	aliceID, aliceToken := registerAndLogin(t, srv, "alice", "pw1")
	bobID, bobToken := registerAndLogin(t, srv, "bob", "pw2")

	alice := dial(t, srv, aliceToken)
	sendEvent(t, alice, "ready", 0, map[string]any{"userId": aliceID, "targetUserId": bobID})
	readEvent(t, alice, chat.EventInitChat)

	// Three sends while bob is offline.
	for i := 1; i <= 3; i++ {
		sendEvent(t, alice, "newMessage", 0, map[string]any{
			"text": fmt.Sprintf("msg %d", i), "userId": aliceID, "targetUserId": bobID, "username": "alice",
		})
	}
	// Handlers for one connection run in order, so this ack proves the
	// three sends were persisted.
	sendEvent(t, alice, "fetchUsername", 9, aliceID)
	readAck(t, alice, 9)

	bob := dial(t, srv, bobToken)
	sendEvent(t, bob, "ready", 0, map[string]any{"userId": bobID, "targetUserId": aliceID})
	batch := readEvent(t, bob, chat.EventInitChat)

	var history []models.Message
	if err := json.Unmarshal(batch.Payload, &history); err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 {
		t.Fatalf("replayed %d messages, want 3", len(history))
	}
	for i, m := range history {
		if want := fmt.Sprintf("msg %d", i+1); m.Text != want {
			t.Fatalf("message %d: got %q, want %q", i, m.Text, want)
		}
	}

	// Bob marks the conversation read; alice gets the live update.
	sendEvent(t, bob, "messageSeen", 0, map[string]any{"userId": bobID, "targetUserId": aliceID})
	update := readEvent(t, alice, chat.EventMessageSeenUpdate)

	var seen struct {
		UserID       string `json:"userId"`
		TargetUserID string `json:"targetUserId"`
	}
	if err := json.Unmarshal(update.Payload, &seen); err != nil {
		t.Fatal(err)
	}
	if seen.UserID != bobID || seen.TargetUserID != aliceID {
		t.Fatalf("seen update %+v", seen)
	}
}

func TestLiveDeliveryToConnectedRecipient(t *testing.T) {
	srv := newTestServer(t)
	aliceID, aliceToken := registerAndLogin(t, srv, "alice", "pw1")
	bobID, bobToken := registerAndLogin(t, srv, "bob", "pw2")

	alice := dial(t, srv, aliceToken)
	bob := dial(t, srv, bobToken)

	// An acked round-trip on bob's connection proves his session entry is
	// bound before alice sends.
	sendEvent(t, bob, "fetchUsername", 1, bobID)
	readAck(t, bob, 1)

	// Bob never opened the room; delivery rides the session directory.
	sendEvent(t, alice, "newMessage", 0, map[string]any{
		"text": "ping", "userId": aliceID, "targetUserId": bobID, "username": "alice",
	})

	push := readEvent(t, bob, chat.EventNewMessage)
	var msg models.Message
	if err := json.Unmarshal(push.Payload, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Text != "ping" || msg.UserID != aliceID {
		t.Fatalf("delivered %+v", msg)
	}

	notif := readEvent(t, bob, chat.EventNotification)
	var wrapper struct {
		MessageData models.Message `json:"messageData"`
	}
	if err := json.Unmarshal(notif.Payload, &wrapper); err != nil {
		t.Fatal(err)
	}
	if wrapper.MessageData.Text != "ping" {
		t.Fatalf("notification %+v", wrapper)
	}
}

func TestRejectsInvalidToken(t *testing.T) {
	srv := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("handshake with an invalid token must fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("response %+v, want 401", resp)
	}
}

func TestUnboundConnectionSurvivesEveryEvent(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv, "")

	// Fire-and-forget events with missing fields are dropped, malformed
	// payloads are ignored, unknown types are logged. None may kill the
	// connection or the server.
	sendEvent(t, conn, "newMessage", 0, map[string]any{"text": "hi"})
	sendEvent(t, conn, "messageSeen", 0, map[string]any{})
	sendEvent(t, conn, "ready", 0, map[string]any{"userId": "A"})
	sendEvent(t, conn, "somethingElse", 0, map[string]any{})
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"newMessage","payload":42}`)); err != nil {
		t.Fatal(err)
	}

	sendEvent(t, conn, "fetchUsername", 1, "ZZZZZ")
	body := readAck(t, conn, 1)
	if body["success"] != false {
		t.Fatalf("connection state corrupted: %v", body)
	}
}
