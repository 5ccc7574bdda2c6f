package document

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	domdoc "github.com/kailas-cloud/semdex/internal/domain/document"
)

// Hash field names for document records.
const (
	fieldID            = "id"
	fieldSourcePath    = "source_path"
	fieldFingerprint   = "fingerprint"
	fieldTextLength    = "text_length"
	fieldFragmentCount = "fragment_count"
	fieldIndexedAt     = "indexed_at"
	fieldMetadata      = "metadata"
)

func fieldsFromDocument(doc domdoc.Document) map[string]string {
	fields := map[string]string{
		fieldID:            doc.ID(),
		fieldSourcePath:    doc.SourcePath(),
		fieldFingerprint:   doc.Fingerprint(),
		fieldTextLength:    strconv.Itoa(doc.TextLength()),
		fieldFragmentCount: strconv.Itoa(doc.FragmentCount()),
		fieldIndexedAt:     doc.IndexedAt().UTC().Format(time.RFC3339Nano),
	}
	if len(doc.Metadata()) > 0 {
		if data, err := json.Marshal(doc.Metadata()); err == nil {
			fields[fieldMetadata] = string(data)
		}
	}
	return fields
}

func documentFromFields(fields map[string]string) (domdoc.Document, error) {
	textLength, err := strconv.Atoi(fields[fieldTextLength])
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("parse text_length: %w", err)
	}
	fragmentCount, err := strconv.Atoi(fields[fieldFragmentCount])
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("parse fragment_count: %w", err)
	}
	indexedAt, err := time.Parse(time.RFC3339Nano, fields[fieldIndexedAt])
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("parse indexed_at: %w", err)
	}

	var metadata map[string]string
	if raw, ok := fields[fieldMetadata]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			return domdoc.Document{}, fmt.Errorf("parse metadata: %w", err)
		}
	}

	return domdoc.Reconstruct(
		fields[fieldID],
		fields[fieldSourcePath],
		fields[fieldFingerprint],
		textLength,
		fragmentCount,
		metadata,
		indexedAt,
	), nil
}

// pathDigest hashes a source path into a fixed-width key segment, since
// paths contain characters that are unsafe in key patterns.
func pathDigest(path string) string {
	h := sha256.Sum256([]byte(path))
	return hex.EncodeToString(h[:])
}
