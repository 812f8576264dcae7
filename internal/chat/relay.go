package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Mascaro101/Echo-backend/internal/models"
	"github.com/Mascaro101/Echo-backend/internal/store"
)

// ErrValidation is returned when a relay operation is missing a required
// field. The gateway logs and drops fire-and-forget events that fail this
// way, but the failure stays observable to callers and tests.
var ErrValidation = errors.New("missing required field")

// Relay routes messages between two-party rooms: it replays history on open,
// persists and fans out new messages, and propagates seen-status updates.
type Relay struct {
	messages store.MessageStore
	sessions *Sessions
	rooms    *Rooms
}

// NewRelay wires the relay over its message store, session directory and
// room registry.
func NewRelay(messages store.MessageStore, sessions *Sessions, rooms *Rooms) *Relay {
	return &Relay{messages: messages, sessions: sessions, rooms: rooms}
}

// Bind maps an authenticated user to its connection (overwrite semantics).
func (r *Relay) Bind(userID string, c Conn) {
	r.sessions.Bind(userID, c)
}

// Disconnect removes every trace of a connection: its session entry (by
// reverse lookup) and all room subscriptions.
func (r *Relay) Disconnect(c Conn) {
	r.sessions.Release(c)
	r.rooms.LeaveAll(c)
}

// OpenRoom subscribes the connection to the pair's room, loads the full
// history ordered by creation time ascending, and emits it as one initChat
// batch to every current room member. Each side opening the room triggers
// its own replay; simultaneous opens are not deduplicated.
func (r *Relay) OpenRoom(ctx context.Context, c Conn, userID, targetUserID string) error {
	if userID == "" || targetUserID == "" {
		return ErrValidation
	}

	roomID := RoomID(userID, targetUserID)
	r.rooms.Join(roomID, c)

	history, err := r.messages.ListConversation(ctx, userID, targetUserID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if history == nil {
		history = []models.Message{}
	}

	log.Printf("[Relay] Replaying %d messages in room %s", len(history), roomID)
	batch := NewEvent(EventInitChat, history)
	for _, member := range r.rooms.Members(roomID) {
		member.Send(batch)
	}
	return nil
}

// SendMessageInput carries one inbound message. Every field is required.
type SendMessageInput struct {
	Text         string `json:"text"`
	UserID       string `json:"userId"`
	TargetUserID string `json:"targetUserId"`
	Username     string `json:"username"`
}

// SendMessage persists the message with seen=false, then delivers it exactly
// once to each reachable recipient connection: the members of the pair's
// room plus the recipient's session entry, excluding the sender's own
// connection. A connected recipient additionally gets a notification event
// so unopened conversations can surface an alert.
func (r *Relay) SendMessage(ctx context.Context, sender Conn, in SendMessageInput) (*models.Message, error) {
	if in.Text == "" || in.UserID == "" || in.TargetUserID == "" || in.Username == "" {
		return nil, ErrValidation
	}

	msg := &models.Message{
		Text:         in.Text,
		UserID:       in.UserID,
		TargetUserID: in.TargetUserID,
		Username:     in.Username,
		SeenStatus:   false,
		CreatedAt:    time.Now().UTC(),
	}
	if err := r.messages.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}

	// Compute the recipient set once so every connection sees the message
	// event at most once no matter how it is reachable.
	recipients := make(map[string]Conn)
	for _, member := range r.rooms.Members(RoomID(in.UserID, in.TargetUserID)) {
		recipients[member.ID()] = member
	}
	target, online := r.sessions.Lookup(in.TargetUserID)
	if online {
		recipients[target.ID()] = target
	}
	if sender != nil {
		delete(recipients, sender.ID())
	}

	ev := NewEvent(EventNewMessage, msg)
	for _, c := range recipients {
		c.Send(ev)
	}

	if online {
		target.Send(NewEvent(EventNotification, map[string]any{"messageData": msg}))
	} else {
		log.Printf("[Relay] User %s is offline, message stored without real-time delivery", in.TargetUserID)
	}
	return msg, nil
}

// SeenUpdate notifies a message author that the peer has read their messages.
type SeenUpdate struct {
	UserID       string `json:"userId"`
	TargetUserID string `json:"targetUserId"`
}

// MarkSeen flips the seen flag on every unseen message authored by targetID
// and addressed to askerID, then notifies the author's session if live.
// Calling it again immediately is a no-op; the reverse direction is never
// touched.
func (r *Relay) MarkSeen(ctx context.Context, askerID, targetID string) error {
	if askerID == "" || targetID == "" {
		return ErrValidation
	}

	matched, err := r.messages.MarkSeen(ctx, askerID, targetID)
	if err != nil {
		return fmt.Errorf("update seen status: %w", err)
	}
	log.Printf("[Relay] Marked %d messages %s -> %s as seen", matched, targetID, askerID)

	if author, ok := r.sessions.Lookup(targetID); ok {
		author.Send(NewEvent(EventMessageSeenUpdate, SeenUpdate{
			UserID:       askerID,
			TargetUserID: targetID,
		}))
	}
	return nil
}
