package parse

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/emrudholm/kvitto-tracker/internal/receipt"
)

// Tag-name fallback chains for the Kivra export. Field names drift between
// format versions (casing, namespaces, aliases), so each field is resolved by
// trying candidate tag names in order; matching compares local names
// case-insensitively, which makes namespace prefixes and case variants share
// one path.
var (
	kivraDateTags     = []string{"Date"}
	kivraStoreTags    = []string{"Store", "Seller"}
	kivraItemTags     = []string{"Item", "Line"}
	kivraNameTags     = []string{"Name", "Description"}
	kivraPriceTags    = []string{"Price", "Amount"}
	kivraQuantityTags = []string{"Quantity"}
)

// kivraDateLayouts are tried in order against the date element's text
var kivraDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseKivra parses a Kivra XML receipt into the same record shape as the
// text parser. Only a malformed document fails; missing fields fall back to
// defaults per element.
func (p *Parser) ParseKivra(data []byte) (*receipt.Receipt, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parsing kivra document: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("kivra document has no root element")
	}

	rec := &receipt.Receipt{
		ID:    p.ids.Generate(),
		Date:  p.kivraDate(root),
		Store: kivraStore(root),
		Items: p.kivraItems(root),
	}
	rec.RecalcTotal()

	p.log.Debug("parsed kivra receipt",
		"store", rec.Store,
		"items", len(rec.Items),
		"total", rec.Total,
	)
	return rec, nil
}

func (p *Parser) kivraDate(root *etree.Element) time.Time {
	if el := findDescendant(root, kivraDateTags); el != nil {
		value := strings.TrimSpace(el.Text())
		for _, layout := range kivraDateLayouts {
			if date, err := time.Parse(layout, value); err == nil {
				return date
			}
		}
		p.log.Debug("kivra date did not parse, using current time", "value", value)
	}
	return p.timeSource.Now()
}

func kivraStore(root *etree.Element) string {
	if el := findDescendant(root, kivraStoreTags); el != nil {
		if store := strings.TrimSpace(el.Text()); store != "" {
			return store
		}
	}
	return defaultStore
}

func (p *Parser) kivraItems(root *etree.Element) []receipt.LineItem {
	items := make([]receipt.LineItem, 0)
	for _, el := range collectDescendants(root, kivraItemTags) {
		name := strings.TrimSpace(childText(el, kivraNameTags))
		if name == "" {
			continue
		}

		price := decimal.Zero
		if raw := strings.TrimSpace(childText(el, kivraPriceTags)); raw != "" {
			if parsed, err := ParseDecimal(raw); err == nil {
				price = parsed
			} else {
				p.log.Debug("kivra price did not parse, defaulting to zero", "item", name, "value", raw)
			}
		}

		quantity := 1
		if raw := strings.TrimSpace(childText(el, kivraQuantityTags)); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed != 0 {
				quantity = parsed
			}
		}

		items = append(items, receipt.LineItem{
			Name:     name,
			Price:    price,
			Quantity: quantity,
			Category: p.lookupCategory(name),
		})
	}
	return items
}

// findDescendant returns the first descendant, in document order, whose local
// tag matches a candidate; earlier candidates win over later ones.
func findDescendant(root *etree.Element, candidates []string) *etree.Element {
	for _, want := range candidates {
		if el := findByLocalTag(root, want); el != nil {
			return el
		}
	}
	return nil
}

func findByLocalTag(el *etree.Element, want string) *etree.Element {
	for _, child := range el.ChildElements() {
		if strings.EqualFold(child.Tag, want) {
			return child
		}
		if found := findByLocalTag(child, want); found != nil {
			return found
		}
	}
	return nil
}

// collectDescendants returns every descendant, in document order, whose local
// tag matches any candidate. Matching elements are not descended into; an
// item element never nests further items.
func collectDescendants(root *etree.Element, candidates []string) []*etree.Element {
	var out []*etree.Element
	for _, child := range root.ChildElements() {
		if matchesAny(child.Tag, candidates) {
			out = append(out, child)
			continue
		}
		out = append(out, collectDescendants(child, candidates)...)
	}
	return out
}

func matchesAny(tag string, candidates []string) bool {
	for _, want := range candidates {
		if strings.EqualFold(tag, want) {
			return true
		}
	}
	return false
}

// childText returns the text of the first direct child matching a candidate
// tag, with earlier candidates winning over later ones.
func childText(el *etree.Element, candidates []string) string {
	for _, want := range candidates {
		for _, child := range el.ChildElements() {
			if strings.EqualFold(child.Tag, want) {
				return child.Text()
			}
		}
	}
	return ""
}
