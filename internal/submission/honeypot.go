// internal/submission/honeypot.go
// Honeypot and timing trap. The decoy and timestamp field names are not
// fixed strings but per-form hashes of the application secret, so a bot
// script that hardcodes field names trips the trap on every deployment.

package submission

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const honeypotNamespace = "formhive"

// Honeypot derives per-form decoy field names
type Honeypot struct {
	secret string
}

func NewHoneypot(appSecret string) *Honeypot {
	return &Honeypot{secret: appSecret}
}

// FieldName returns the decoy input's name for a form. Humans never see the
// field (it is hidden client-side); any non-empty value marks a bot.
func (h *Honeypot) FieldName(formID int64) string {
	return h.derive(formID, "h")
}

// TimestampFieldName returns the name of the hidden render-time field used
// by the minimum-elapsed-time check.
func (h *Honeypot) TimestampFieldName(formID int64) string {
	return h.derive(formID, "t")
}

// derive slices 24 hex characters from sha256(secret|namespace|salt|formID)
func (h *Honeypot) derive(formID int64, salt string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", h.secret, honeypotNamespace, salt, formID)))
	return hex.EncodeToString(sum[:])[:24]
}
