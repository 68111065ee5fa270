package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"tracelite/pkg/errors"
)

// daySecretContext domain-separates the day-secret derivation from any
// other use of the root key.
const daySecretContext = "tracelite:day-secret:"

// Anonymizer derives one-way, day-scoped visitor identities. The day
// secret is a pure function of the root key and the UTC date, so every
// instance computes the same secret without coordination, and yesterday's
// identities are computationally unrelated to today's.
type Anonymizer struct {
	rootKey []byte
}

// NewAnonymizer creates a new anonymizer from the long-lived root key
func NewAnonymizer(rootKey string) (*Anonymizer, error) {
	if rootKey == "" {
		return nil, fmt.Errorf("anonymization root key is empty")
	}
	return &Anonymizer{rootKey: []byte(rootKey)}, nil
}

// DaySecret derives the secret for the UTC calendar day of t
func (a *Anonymizer) DaySecret(t time.Time) []byte {
	mac := hmac.New(sha256.New, a.rootKey)
	mac.Write([]byte(daySecretContext + t.UTC().Format("2006-01-02")))
	return mac.Sum(nil)
}

// VisitorID computes the anonymized visitor identity for the given client
// fingerprint on the UTC day of t. The inputs are consumed here and must
// not be persisted or logged by any caller.
//
// An unavailable IP is refused rather than replaced with a placeholder:
// a placeholder would collapse distinct visitors into one and silently
// corrupt uniqueness counts.
func (a *Anonymizer) VisitorID(ipAddress, userAgent string, t time.Time) (string, error) {
	if strings.TrimSpace(ipAddress) == "" {
		return "", errors.NewValidationError("client IP address unavailable", nil)
	}

	mac := hmac.New(sha256.New, a.DaySecret(t))
	mac.Write([]byte(ipAddress + "|" + userAgent))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// IPHash creates a short hash of an IP address for rate-limit keys, so the
// raw address never reaches Redis
func IPHash(ipAddress string) string {
	hash := sha256.Sum256([]byte(ipAddress))
	return hex.EncodeToString(hash[:])[:16]
}
