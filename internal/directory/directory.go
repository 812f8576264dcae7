package directory

import (
	"context"

	"github.com/Mascaro101/Echo-backend/internal/store"
)

// Directory exposes the published identity material of registered users.
// Everything here is read-only: key bundles are written once at registration
// and remain readable indefinitely so a peer can bootstrap an asynchronous
// key agreement with an offline user.
type Directory struct {
	users store.UserStore
}

// New returns a directory over the given user store.
func New(users store.UserStore) *Directory {
	return &Directory{users: users}
}

// FetchUsername resolves a user id to its display name.
func (d *Directory) FetchUsername(ctx context.Context, userID string) (string, error) {
	u, err := d.users.FindUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

// SignedPreKey returns the published pre-key value and its signature under
// the owner's identity key.
func (d *Directory) SignedPreKey(ctx context.Context, targetUserID string) (preKey, signature string, err error) {
	u, err := d.users.FindUserByID(ctx, targetUserID)
	if err != nil {
		return "", "", err
	}
	return u.SignedPreKey, u.Signature, nil
}

// IdentityKeyX25519 returns the identity public key in Montgomery form.
func (d *Directory) IdentityKeyX25519(ctx context.Context, targetUserID string) (string, error) {
	u, err := d.users.FindUserByID(ctx, targetUserID)
	if err != nil {
		return "", err
	}
	return u.PublicIdentityKeyX25519, nil
}

// IdentityKeyEd25519 returns the identity public key in Edwards form.
func (d *Directory) IdentityKeyEd25519(ctx context.Context, targetUserID string) (string, error) {
	u, err := d.users.FindUserByID(ctx, targetUserID)
	if err != nil {
		return "", err
	}
	return u.PublicIdentityKeyEd25519, nil
}

// SearchResult is the public projection returned by Search.
type SearchResult struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Search looks a user up by exact username. Despite the name there is no
// fuzzy matching.
func (d *Directory) Search(ctx context.Context, term string) (SearchResult, error) {
	u, err := d.users.FindUserByUsername(ctx, term)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{ID: u.ID, Username: u.Username}, nil
}
