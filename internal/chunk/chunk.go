// Package chunk splits normalized text into overlapping, boundary-aware
// spans. The transform is pure and deterministic: identical input and
// configuration always produce identical spans, which the indexing
// orchestrator relies on for idempotent re-ingestion.
package chunk

import (
	"fmt"
	"unicode"

	"github.com/kailas-cloud/semdex/internal/domain"
)

// Config controls fragment sizing. All values are in characters (runes).
type Config struct {
	// TargetSize is the maximum span length.
	TargetSize int
	// Overlap is the number of characters shared between consecutive spans.
	Overlap int
	// Tolerance is the window before TargetSize in which a natural break
	// point is preferred over a hard cut. Zero means TargetSize / 5.
	Tolerance int
}

// Span is one fragment boundary produced by a Builder pass.
// Offsets are rune positions into the input text.
type Span struct {
	Ordinal int
	Start   int
	End     int
	// Overlap is the number of characters shared with the previous span.
	Overlap int
	// Total is the span count of the whole pass.
	Total int
}

// Builder splits text according to a validated Config.
type Builder struct {
	cfg Config
}

// NewBuilder validates the configuration eagerly. Overlap >= TargetSize
// cannot make progress and is rejected.
func NewBuilder(cfg Config) (*Builder, error) {
	if cfg.TargetSize <= 0 {
		return nil, fmt.Errorf("target size must be positive, got %d: %w",
			cfg.TargetSize, domain.ErrInvalidChunkConfig)
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.TargetSize {
		return nil, fmt.Errorf("overlap must be in [0, target size), got %d: %w",
			cfg.Overlap, domain.ErrInvalidChunkConfig)
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = cfg.TargetSize / 5
	}
	if cfg.Tolerance >= cfg.TargetSize {
		cfg.Tolerance = cfg.TargetSize - 1
	}
	return &Builder{cfg: cfg}, nil
}

// Split produces ordered spans covering text with no gaps. Empty text
// yields no spans; text no longer than TargetSize yields exactly one.
// Span texts are raw slices of the input: reassembling them minus
// overlaps reconstructs the input exactly.
func (b *Builder) Split(text string) []Span {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var spans []Span
	start := 0

	for start < len(runes) {
		end := start + b.cfg.TargetSize
		if end >= len(runes) {
			end = len(runes)
		} else if cut, ok := b.findBreak(runes, start, end); ok {
			end = cut
		}

		spans = append(spans, Span{Start: start, End: end})

		if end >= len(runes) {
			break
		}

		next := end - b.cfg.Overlap
		if next <= start {
			// Degenerate input: overlap would rewind past the previous
			// start. Force progress by one character.
			next = start + 1
		}
		start = next
	}

	// Second pass: finalize ordinals, totals, and effective overlaps.
	for i := range spans {
		spans[i].Ordinal = i
		spans[i].Total = len(spans)
		if i > 0 && spans[i].Start < spans[i-1].End {
			spans[i].Overlap = spans[i-1].End - spans[i].Start
		}
	}

	return spans
}

// Text returns the raw text of a span within the original input.
func (s Span) Text(text string) string {
	return string([]rune(text)[s.Start:s.End])
}

// findBreak locates the rightmost natural break point within the window
// [end - Tolerance, end), preferring paragraph breaks over sentence ends
// over whitespace. Returns the cut position and whether one was found.
func (b *Builder) findBreak(runes []rune, start, end int) (int, bool) {
	lo := end - b.cfg.Tolerance
	if lo <= start {
		lo = start + 1
	}

	// Paragraph break: cut right after "\n\n".
	for i := end - 1; i >= lo; i-- {
		if runes[i] == '\n' && i > 0 && runes[i-1] == '\n' {
			return i + 1, true
		}
	}

	// Sentence end: cut right after the terminator when followed by space.
	for i := end - 2; i >= lo-1 && i >= start; i-- {
		if isSentenceEnd(runes[i]) && unicode.IsSpace(runes[i+1]) {
			if i+1 >= lo {
				return i + 1, true
			}
			break
		}
	}

	// Whitespace: cut right after the space.
	for i := end - 1; i >= lo; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i, true
		}
	}

	return 0, false
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
