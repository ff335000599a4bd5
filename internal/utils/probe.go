package utils

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ProbeLimit bounds every random-name probe loop (IdP usernames, nicknames,
// bucket keys).
const ProbeLimit = 10

// RandomName returns a fresh candidate like "reader-3f2a9c1b".
func RandomName(prefix string) string {
	id := uuid.New().String()
	return fmt.Sprintf("%s-%s", prefix, id[:8])
}

// MaskEmail rewrites "someone@host" to "s***@host" for account-lookup
// responses.
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return email
	}
	return email[:1] + "***" + email[at:]
}
