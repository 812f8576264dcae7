package models

import "time"

// Message is a persisted chat message between two users.
// Text is opaque to the server and may be ciphertext; it is stored and
// forwarded as-is. Messages are never deleted; the only permitted mutation
// is SeenStatus false -> true, applied in bulk per directed pair.
type Message struct {
	// Text is the opaque message payload
	Text string `bson:"text" json:"text"`

	// UserID is the sender's id
	UserID string `bson:"userId" json:"userId"`

	// TargetUserID is the recipient's id
	TargetUserID string `bson:"targetUserId" json:"targetUserId"`

	// Username is the sender's display name, denormalized for rendering
	Username string `bson:"username" json:"username"`

	// SeenStatus marks whether the recipient has read the message
	SeenStatus bool `bson:"seenStatus" json:"seenStatus"`

	// CreatedAt orders the conversation history
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}
