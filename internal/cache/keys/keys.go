// Package keys builds cache keys and record fingerprints for cached
// classification results.
package keys

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/knownlayers/internal/core/model"
)

const prefix = "kl"

// RecordKey addresses the cached classification of one record under one
// registry version. Long ids are truncated; the hash suffix keeps them unique.
func RecordKey(version, recordID string) string {
	idSafe := sanitizeForKey(strings.TrimSpace(recordID))

	const maxIDTextLen = 120
	if len(idSafe) > maxIDTextLen {
		idSafe = idSafe[:maxIDTextLen]
	}

	sum := xxhash.Sum64String(recordID)
	return fmt.Sprintf("%s:%s:%s:id=%016x", prefix, sanitizeForKey(version), idSafe, sum)
}

// Pattern matches every record key in any registry version.
const Pattern = prefix + ":*"

// Stale reports whether key is a record key written under a registry
// version other than current. Keys outside the record key space are never
// stale.
func Stale(key, current string) bool {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 || parts[0] != prefix {
		return false
	}
	return parts[1] != sanitizeForKey(current)
}

// Fingerprint hashes every record field a selector may read. Two records
// with the same fingerprint classify identically under one registry.
func Fingerprint(rec model.CSWRecord) uint64 {
	rec.Revision = 0
	b, err := json.Marshal(rec)
	if err != nil {
		// CSWRecord holds only strings, numbers and slices of them
		return xxhash.Sum64String(rec.ID)
	}
	return xxhash.Sum64(b)
}

func sanitizeForKey(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			// Any other rune (including ':' and non-ASCII) becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r <= unicode.MaxASCII && unicode.IsDigit(r))
}
