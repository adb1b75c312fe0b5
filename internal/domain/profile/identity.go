package profile

import (
	"encoding/hex"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/legacy-quest/progression-engine/internal/domain/shared"
)

const (
	emailKeyPrefix   = "email:"
	sessionKeyPrefix = "session:"
)

// Identity names a player by email, by anonymous session, or both. Email
// wins when both are present.
type Identity struct {
	Email     string `json:"email,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// NewIdentity normalizes and validates the inputs. Both empty yields
// ErrMissingIdentity; a malformed email yields ErrInvalidEmail.
func NewIdentity(email, sessionID string) (Identity, error) {
	id := Identity{
		Email:     strings.ToLower(strings.TrimSpace(email)),
		SessionID: strings.TrimSpace(sessionID),
	}
	if id.Email == "" && id.SessionID == "" {
		return Identity{}, shared.ErrMissingIdentity
	}
	if id.Email != "" {
		addr, err := mail.ParseAddress(id.Email)
		if err != nil || addr.Address != id.Email || !strings.Contains(id.Email, "@") {
			return Identity{}, shared.WrapError("profile", "NewIdentity", shared.ErrInvalidEmail,
				fmt.Sprintf("%q is not a valid address", email), err)
		}
	}
	return id, nil
}

// IsZero reports whether no identity is set.
func (i Identity) IsZero() bool {
	return i.Email == "" && i.SessionID == ""
}

// HasEmail reports whether the identity is backed by an email address.
func (i Identity) HasEmail() bool {
	return i.Email != ""
}

// Key is the canonical storage key: "email:<lower>" or "session:<id>".
func (i Identity) Key() string {
	if i.Email != "" {
		return emailKeyPrefix + strings.ToLower(i.Email)
	}
	if i.SessionID != "" {
		return sessionKeyPrefix + i.SessionID
	}
	return ""
}

// SessionKey is the session form of the identity, or "" without a session.
func (i Identity) SessionKey() string {
	if i.SessionID == "" {
		return ""
	}
	return sessionKeyPrefix + i.SessionID
}

// String implements fmt.Stringer using the fingerprint so raw emails stay out of logs.
func (i Identity) String() string {
	return i.Fingerprint()
}

// Fingerprint is the hex blake2b-256 digest of Key. It is the only form of
// the identity shared with caches and third parties.
func (i Identity) Fingerprint() string {
	return FingerprintKey(i.Key())
}

// FingerprintKey hashes an already canonical key.
func FingerprintKey(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// ParseKey rebuilds an Identity from its canonical key.
func ParseKey(key string) (Identity, error) {
	switch {
	case strings.HasPrefix(key, emailKeyPrefix):
		return NewIdentity(strings.TrimPrefix(key, emailKeyPrefix), "")
	case strings.HasPrefix(key, sessionKeyPrefix):
		return NewIdentity("", strings.TrimPrefix(key, sessionKeyPrefix))
	default:
		return Identity{}, shared.WrapError("profile", "ParseKey", shared.ErrMissingIdentity,
			fmt.Sprintf("malformed identity key %q", key), nil)
	}
}
