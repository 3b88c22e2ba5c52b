package parse

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/emrudholm/kvitto-tracker/internal/receipt"
)

// ParsePDF extracts the text layer of a PDF receipt, page by page, and parses
// it as an ICA receipt. Extraction is the only fallible step; once text is in
// hand a record is always produced.
func (p *Parser) ParsePDF(data []byte) (*receipt.Receipt, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	var text strings.Builder
	for page := 0; page < doc.NumPage(); page++ {
		pageText, err := doc.Text(page)
		if err != nil {
			return nil, fmt.Errorf("extracting text from page %d: %w", page+1, err)
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}
	p.log.Debug("extracted PDF text", "pages", doc.NumPage(), "characters", text.Len())

	return p.ParseText(text.String()), nil
}
