package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateUUIDWithSuffix generates a prefixed UUID for entity identifiers,
// e.g. "ntf_9f2c...". The prefix makes ids self-describing in logs and
// triage queries.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%s", module, id.String())
}

// NormalizeEmail lowercases and trims an email address so that owner keys
// and dedupe tokens built from guest emails are stable across enqueues.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// BuildOwnerKey derives the stable ownership key entitlements are issued
// under. Priority: registered user, then email identity, then guest email.
func BuildOwnerKey(ownerUserID, ownerIdentityID, guestEmail string) string {
	if ownerUserID != "" {
		return "user:" + ownerUserID
	}
	if ownerIdentityID != "" {
		return "identity:" + ownerIdentityID
	}
	if guest := NormalizeEmail(guestEmail); guest != "" {
		return "email:" + guest
	}
	return "unknown"
}
