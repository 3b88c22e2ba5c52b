// Package parse turns ICA receipt documents into structured receipt records.
//
// Two source formats are supported: the text layer of an ICA PDF receipt and
// the Kivra XML export. Field positions, separators and even which lines
// exist drift between receipt template versions, so every extraction tries an
// ordered list of heuristics and a line that fails to parse is skipped rather
// than aborting the document. An empty item list on the returned record is
// the caller's signal that nothing usable was found.
package parse

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/emrudholm/kvitto-tracker/internal/receipt"
)

// Categorizer looks up the spending category for an item name. Lookups are
// case-insensitive exact matches; a missing category is a normal result, not
// an error.
type Categorizer interface {
	LookupCategory(itemName string) (string, bool)
}

// IDGenerator generates unique IDs for receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// uuidGenerator generates receipt IDs as UUIDs
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Parser parses receipt documents. A parse owns its own line stream and
// produces its own record, so one Parser may serve concurrent requests.
type Parser struct {
	categories Categorizer
	log        *slog.Logger
	ids        IDGenerator
	timeSource TimeSource
}

// New creates a Parser with UUID IDs and the system clock. A nil Categorizer
// leaves every item uncategorized.
func New(categories Categorizer) *Parser {
	return NewWithDeps(categories, slog.Default(), &uuidGenerator{}, &defaultTimeSource{})
}

// NewWithDeps creates a Parser with custom dependencies for testing
func NewWithDeps(categories Categorizer, log *slog.Logger, ids IDGenerator, timeSrc TimeSource) *Parser {
	return &Parser{
		categories: categories,
		log:        log,
		ids:        ids,
		timeSource: timeSrc,
	}
}

// lookupCategory tolerates a nil Categorizer
func (p *Parser) lookupCategory(name string) string {
	if p.categories == nil {
		return ""
	}
	category, ok := p.categories.LookupCategory(name)
	if !ok {
		return ""
	}
	return category
}

// splitLines turns extracted document text into the trimmed, non-empty line stream
func splitLines(text string) []string {
	lines := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// ParseText parses the extracted text of an ICA receipt. It always returns a
// record: fields that cannot be found fall back to defaults, so the caller
// decides whether an empty item list means failure.
func (p *Parser) ParseText(text string) *receipt.Receipt {
	lines := splitLines(text)
	p.log.Debug("parsing receipt text", "lines", len(lines))

	rec := &receipt.Receipt{ID: p.ids.Generate()}
	rec.Store = p.extractStore(lines)
	rec.Date, rec.ReceiptNumber = p.extractDateAndNumber(lines)
	rec.Items = p.parseItems(lines)
	rec.RecalcTotal()

	p.log.Debug("parsed receipt",
		"store", rec.Store,
		"date", rec.Date,
		"receipt_number", rec.ReceiptNumber,
		"items", len(rec.Items),
		"total", rec.Total,
	)
	return rec
}
