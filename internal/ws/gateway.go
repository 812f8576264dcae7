package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Mascaro101/Echo-backend/internal/auth"
	"github.com/Mascaro101/Echo-backend/internal/chat"
	"github.com/Mascaro101/Echo-backend/internal/directory"
	"github.com/Mascaro101/Echo-backend/internal/models"
	"github.com/Mascaro101/Echo-backend/internal/store"
)

// Gateway accepts websocket connections, authenticates them, binds
// identities into the session directory, and dispatches inbound events to
// the services. Connections without a token are admitted unauthenticated so
// the same channel can carry registration and login traffic.
type Gateway struct {
	auth     *auth.Service
	relay    *chat.Relay
	dir      *directory.Directory
	upgrader websocket.Upgrader
}

// NewGateway returns a gateway restricted to the given origins. An empty
// allow-list admits only same-origin (and origin-less) requests.
func NewGateway(authSvc *auth.Service, relay *chat.Relay, dir *directory.Directory, allowedOrigins []string) *Gateway {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Gateway{
		auth:  authSvc,
		relay: relay,
		dir:   dir,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
	}
}

// ServeWS handles websocket upgrade requests at /ws.
// The bearer token rides the handshake as the "token" query parameter:
// absent means unauthenticated, invalid rejects the connection.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	var claims *auth.Claims
	if token := r.URL.Query().Get("token"); token != "" {
		c, err := g.auth.Verify(token)
		if err != nil {
			log.Printf("[WebSocket] Rejected connection with invalid token: %v", err)
			http.Error(w, "authentication error", http.StatusUnauthorized)
			return
		}
		claims = c
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WebSocket] Upgrade failed: %v", err)
		return
	}

	client := newClient(conn)
	if claims != nil {
		g.relay.Bind(claims.ID, client)
		log.Printf("[WebSocket] User %s (%s) mapped to connection %s", claims.Username, claims.ID, client.id)
	} else {
		log.Printf("[WebSocket] Unauthenticated connection %s admitted", client.id)
	}

	go client.writePump()
	g.readLoop(r.Context(), client)
}

// readLoop processes inbound events for one connection sequentially, so two
// handlers for the same connection never interleave. It returns when the
// connection dies, after which every trace of the connection is removed.
func (g *Gateway) readLoop(ctx context.Context, client *Client) {
	defer func() {
		g.relay.Disconnect(client)
		client.close()
		client.conn.Close()
		log.Printf("[WebSocket] Connection %s disconnected", client.id)
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var ev chat.Event
		if err := client.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WebSocket] Read error on %s: %v", client.id, err)
			}
			return
		}
		g.dispatch(ctx, client, ev)
	}
}

func (g *Gateway) dispatch(ctx context.Context, client *Client, ev chat.Event) {
	switch ev.Type {
	case "register":
		g.handleRegister(ctx, client, ev)
	case "login":
		g.handleLogin(ctx, client, ev)
	case "ready":
		g.handleReady(ctx, client, ev)
	case "newMessage":
		g.handleNewMessage(ctx, client, ev)
	case "messageSeen":
		g.handleMessageSeen(ctx, client, ev)
	case "fetchUsername":
		g.handleFetchUsername(ctx, client, ev)
	case "getSignedPreKey":
		g.handleGetSignedPreKey(ctx, client, ev)
	case "getPublicIdentityKeyX25519":
		g.handleGetIdentityKey(ctx, client, ev, "publicIdentityKeyX25519", g.dir.IdentityKeyX25519)
	case "getPublicIdentityKeyEd25519":
		g.handleGetIdentityKey(ctx, client, ev, "publicIdentityKeyEd25519", g.dir.IdentityKeyEd25519)
	case "searchUser":
		g.handleSearchUser(ctx, client, ev)
	default:
		log.Printf("[WebSocket] Unknown event %q from %s", ev.Type, client.id)
	}
}

// ack replies to a request/response event. Fire-and-forget events never
// pass an ack number, in which case this is a no-op.
func (g *Gateway) ack(client *Client, ev chat.Event, body map[string]any) {
	if ev.Ack == 0 {
		return
	}
	reply := chat.NewEvent(chat.EventAck, body)
	reply.Ack = ev.Ack
	client.Send(reply)
}

// failure maps service errors to the {success:false, error} ack shape.
// Store failures stay generic so internals never leak to clients.
func failure(err error) map[string]any {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return map[string]any{"success": false, "error": "User not found"}
	case errors.Is(err, auth.ErrInvalidCredentials):
		return map[string]any{"success": false, "error": "Invalid username or password"}
	case errors.Is(err, auth.ErrDuplicateUsername):
		return map[string]any{"success": false, "error": "Username already taken"}
	case errors.Is(err, auth.ErrValidation), errors.Is(err, chat.ErrValidation):
		return map[string]any{"success": false, "error": "Missing or malformed fields"}
	case errors.Is(err, auth.ErrInvalidToken):
		return map[string]any{"success": false, "error": "Authentication error"}
	default:
		return map[string]any{"success": false, "error": "Internal server error"}
	}
}

type registerPayload struct {
	Username  string           `json:"username"`
	Password  string           `json:"password"`
	KeyBundle models.KeyBundle `json:"keyBundle"`
}

func (g *Gateway) handleRegister(ctx context.Context, client *Client, ev chat.Event) {
	var p registerPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		g.ack(client, ev, failure(auth.ErrValidation))
		return
	}
	id, err := g.auth.Register(ctx, p.Username, p.Password, p.KeyBundle)
	if err != nil {
		log.Printf("[WebSocket] Register failed for %q: %v", p.Username, err)
		g.ack(client, ev, failure(err))
		return
	}
	log.Printf("[WebSocket] Registered user %q with id %s", p.Username, id)
	g.ack(client, ev, map[string]any{"success": true, "id": id})
}

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (g *Gateway) handleLogin(ctx context.Context, client *Client, ev chat.Event) {
	var p loginPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		g.ack(client, ev, failure(auth.ErrInvalidCredentials))
		return
	}
	token, err := g.auth.Login(ctx, p.Username, p.Password)
	if err != nil {
		g.ack(client, ev, failure(err))
		return
	}
	g.ack(client, ev, map[string]any{"success": true, "token": token})
}

type readyPayload struct {
	UserID       string `json:"userId"`
	TargetUserID string `json:"targetUserId"`
}

func (g *Gateway) handleReady(ctx context.Context, client *Client, ev chat.Event) {
	var p readyPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		log.Printf("[WebSocket] Malformed ready payload from %s: %v", client.id, err)
		return
	}
	if err := g.relay.OpenRoom(ctx, client, p.UserID, p.TargetUserID); err != nil {
		log.Printf("[WebSocket] Open room %s <-> %s failed: %v", p.UserID, p.TargetUserID, err)
	}
}

func (g *Gateway) handleNewMessage(ctx context.Context, client *Client, ev chat.Event) {
	var in chat.SendMessageInput
	if err := json.Unmarshal(ev.Payload, &in); err != nil {
		log.Printf("[WebSocket] Malformed newMessage payload from %s: %v", client.id, err)
		return
	}
	// Fire-and-forget: failures are logged, never surfaced to the sender.
	if _, err := g.relay.SendMessage(ctx, client, in); err != nil {
		log.Printf("[WebSocket] Send from %s dropped: %v", in.UserID, err)
	}
}

func (g *Gateway) handleMessageSeen(ctx context.Context, client *Client, ev chat.Event) {
	var p readyPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		log.Printf("[WebSocket] Malformed messageSeen payload from %s: %v", client.id, err)
		return
	}
	if err := g.relay.MarkSeen(ctx, p.UserID, p.TargetUserID); err != nil {
		log.Printf("[WebSocket] Seen update %s -> %s dropped: %v", p.UserID, p.TargetUserID, err)
	}
}

func (g *Gateway) handleFetchUsername(ctx context.Context, client *Client, ev chat.Event) {
	// The payload is the bare user id string.
	var userID string
	if err := json.Unmarshal(ev.Payload, &userID); err != nil || userID == "" {
		g.ack(client, ev, failure(chat.ErrValidation))
		return
	}
	username, err := g.dir.FetchUsername(ctx, userID)
	if err != nil {
		g.ack(client, ev, failure(err))
		return
	}
	g.ack(client, ev, map[string]any{"success": true, "username": username})
}

type targetPayload struct {
	TargetUserID string `json:"targetUserId"`
}

func (g *Gateway) handleGetSignedPreKey(ctx context.Context, client *Client, ev chat.Event) {
	var p targetPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil || p.TargetUserID == "" {
		g.ack(client, ev, failure(chat.ErrValidation))
		return
	}
	preKey, signature, err := g.dir.SignedPreKey(ctx, p.TargetUserID)
	if err != nil {
		g.ack(client, ev, failure(err))
		return
	}
	g.ack(client, ev, map[string]any{"success": true, "signedPreKey": preKey, "signature": signature})
}

func (g *Gateway) handleGetIdentityKey(ctx context.Context, client *Client, ev chat.Event, field string, fetch func(context.Context, string) (string, error)) {
	var p targetPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil || p.TargetUserID == "" {
		g.ack(client, ev, failure(chat.ErrValidation))
		return
	}
	key, err := fetch(ctx, p.TargetUserID)
	if err != nil {
		g.ack(client, ev, failure(err))
		return
	}
	g.ack(client, ev, map[string]any{"success": true, field: key})
}

type searchPayload struct {
	SearchTerm string `json:"searchTerm"`
}

func (g *Gateway) handleSearchUser(ctx context.Context, client *Client, ev chat.Event) {
	var p searchPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil || p.SearchTerm == "" {
		g.ack(client, ev, failure(chat.ErrValidation))
		return
	}
	result, err := g.dir.Search(ctx, p.SearchTerm)
	if err != nil {
		g.ack(client, ev, failure(err))
		return
	}
	g.ack(client, ev, map[string]any{"success": true, "user": result})
}
