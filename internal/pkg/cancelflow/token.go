package cancelflow

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// NewSessionToken mints a widget session token: 32 bytes of crypto/rand,
// base64url without padding. The token is the session's only address, so it
// must be unguessable.
func NewSessionToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
