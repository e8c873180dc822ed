// Package dedup assigns content-addressed identities to entity records and
// upserts them so that one natural key maps to exactly one live row.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/leadgen-enrich/internal/history"
	"github.com/sells-group/leadgen-enrich/internal/model"
)

var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize folds a natural-key value for comparison: accents stripped,
// lower-cased, trimmed and inner whitespace collapsed.
func Normalize(s string) string {
	folded, _, err := transform.String(foldAccents, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// Fingerprint hashes the normalized key columns of r, scoped by entity type
// and parent id. Absent key columns hash as empty so that an optional key
// (a client's tax id) does not fork the identity of a record that lacks it.
func Fingerprint(entity model.EntityType, scope string, keyCols []string, r model.Record) string {
	parts := make([]string, 0, len(keyCols)+2)
	parts = append(parts, string(entity), Normalize(scope))
	for _, col := range keyCols {
		v := ""
		if s := history.Stringify(r[col]); s != nil {
			v = Normalize(*s)
		}
		parts = append(parts, v)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}
