package models

// User is a registered account. The key bundle fields are published once at
// registration and are immutable afterwards; peers read them to bootstrap an
// asynchronous key agreement while the owner is offline. The server never
// holds private keys.
type User struct {
	// ID is the short shareable identifier (5 chars, A-Z and 0-9)
	ID string `bson:"id" json:"id"`

	// Username is the unique display/login name
	Username string `bson:"username" json:"username"`

	// HashedPassword is the bcrypt hash of the login password
	HashedPassword string `bson:"hashedPassword" json:"-"`

	// PublicIdentityKeyX25519 is the identity key in Montgomery form,
	// used for the Diffie-Hellman side of the handshake
	PublicIdentityKeyX25519 string `bson:"publicIdentityKeyX25519" json:"publicIdentityKeyX25519"`

	// PublicIdentityKeyEd25519 is the identity key in Edwards form,
	// used to verify the signed pre-key
	PublicIdentityKeyEd25519 string `bson:"publicIdentityKeyEd25519" json:"publicIdentityKeyEd25519"`

	// SignedPreKey is the public signed pre-key value
	SignedPreKey string `bson:"signedPreKey" json:"signedPreKey"`

	// Signature is the signature of SignedPreKey under the identity key
	Signature string `bson:"signature" json:"signature"`
}

// KeyBundle is the public key material a client submits at registration.
// PublicSignedPreKey carries [preKey, signature] in that order.
type KeyBundle struct {
	PublicIdentityKeyX25519  string   `json:"publicIdentityKeyX25519"`
	PublicIdentityKeyEd25519 string   `json:"publicIdentityKeyEd25519"`
	PublicSignedPreKey       []string `json:"publicSignedPreKey"`
}

// Valid reports whether every bundle field is present.
func (kb KeyBundle) Valid() bool {
	if kb.PublicIdentityKeyX25519 == "" || kb.PublicIdentityKeyEd25519 == "" {
		return false
	}
	if len(kb.PublicSignedPreKey) != 2 {
		return false
	}
	return kb.PublicSignedPreKey[0] != "" && kb.PublicSignedPreKey[1] != ""
}
