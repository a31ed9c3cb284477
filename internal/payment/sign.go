package payment

import (
	"sort"
	"strings"

	"github.com/slava9999-dev/arbarea-backend/internal/common"
)

// tokenField is the request field carrying the signature itself. It is
// always excluded from the signing domain.
const tokenField = "Token"

// passwordField is the provider's name for the shared secret merged into the
// signing domain before hashing.
const passwordField = "Password"

// Sign computes the provider signature over a flat map of scalar fields:
// drop the Token field, merge the shared secret in as Password, sort the
// field names lexicographically, concatenate their values with no separator
// and hash with SHA-256. The result is lowercase hex.
//
// Callers are responsible for flattening: nested structures (receipts, shop
// lists) never enter the signing domain, only root-level scalars do.
func Sign(fields map[string]string, secret string) string {
	merged := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		if k == tokenField {
			continue
		}
		merged[k] = v
	}
	merged[passwordField] = secret

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(merged[k])
	}
	return common.Sha256Hex(b.String())
}

// Verify recomputes the signature for fields and compares it to the provided
// token. The comparison is case-insensitive; an empty token never verifies.
func Verify(fields map[string]string, secret, token string) bool {
	if token == "" {
		return false
	}
	return strings.EqualFold(Sign(fields, secret), token)
}
