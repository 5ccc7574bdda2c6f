package search

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Signature derives the cache key for a query. The query text is
// case-folded and whitespace-normalized first, so trivially different
// spellings of the same question share one cache entry. topK and
// minScore are part of the key: they change the result list, not just
// its presentation.
func Signature(query string, topK int, minScore float64) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")

	var sb strings.Builder
	sb.WriteString(normalized)
	sb.WriteByte('|')
	sb.WriteString(strconv.Itoa(topK))
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatFloat(minScore, 'g', -1, 64))

	h := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(h[:])
}
