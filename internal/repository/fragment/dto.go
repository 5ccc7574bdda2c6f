package fragment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/kailas-cloud/semdex/internal/db"
	domfrag "github.com/kailas-cloud/semdex/internal/domain/fragment"
	"github.com/kailas-cloud/semdex/internal/domain/search/result"
)

// Hash field names for fragment records. document_id, ordinal, and
// vector are indexed; the rest are payload.
const (
	fieldDocumentID = "document_id"
	fieldOrdinal    = "ordinal"
	fieldStartChar  = "start_char"
	fieldEndChar    = "end_char"
	fieldOverlap    = "overlap"
	fieldTotal      = "total_chunks"
	fieldContent    = "content"
	fieldMetadata   = "metadata"
	fieldVector     = "vector"
)

func fieldsFromFragment(f *domfrag.Fragment) map[string]string {
	fields := map[string]string{
		fieldDocumentID: f.DocumentID(),
		fieldOrdinal:    strconv.Itoa(f.Ordinal()),
		fieldStartChar:  strconv.Itoa(f.Start()),
		fieldEndChar:    strconv.Itoa(f.End()),
		fieldOverlap:    strconv.Itoa(f.Overlap()),
		fieldTotal:      strconv.Itoa(f.Total()),
		fieldContent:    f.Text(),
		fieldVector:     vectorToBytes(f.Vector()),
	}
	if len(f.Metadata()) > 0 {
		if data, err := json.Marshal(f.Metadata()); err == nil {
			fields[fieldMetadata] = string(data)
		}
	}
	return fields
}

func resultFromEntry(entry db.SearchEntry) (result.Result, error) {
	documentID := entry.Fields[fieldDocumentID]
	if documentID == "" {
		return result.Result{}, fmt.Errorf("entry missing %s", fieldDocumentID)
	}

	ordinal, err := strconv.Atoi(entry.Fields[fieldOrdinal])
	if err != nil {
		return result.Result{}, fmt.Errorf("parse ordinal: %w", err)
	}

	var metadata map[string]string
	if raw, ok := entry.Fields[fieldMetadata]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			return result.Result{}, fmt.Errorf("parse metadata: %w", err)
		}
	}

	return result.New(
		domfrag.ID(documentID, ordinal),
		documentID,
		ordinal,
		entry.Score,
		entry.Fields[fieldContent],
		metadata,
	), nil
}

// vectorToBytes encodes a float32 vector as the little-endian FLOAT32
// blob Redis vector fields expect.
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
