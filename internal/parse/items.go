package parse

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/emrudholm/kvitto-tracker/internal/receipt"
)

// itemSectionHeader is the column-header line that opens the item section
const itemSectionHeader = "Beskrivning"

// sectionTerminators end the item section: payment total, tax breakdown,
// aggregate discount summary and payment details all follow the items.
var sectionTerminators = []string{
	"Betalat",
	"Moms %",
	"Erhållen rabatt",
	"Betalningsinformation",
}

// discountSummaryPhrases exclude a line from the per-item discount branch.
// "rabatt" alone subsumes the other two; all three are kept so the list reads
// as the receipt wording it matches.
var discountSummaryPhrases = []string{
	"Erhållen rabatt",
	"Storköpsrabatt",
	"rabatt",
}

// aggregateDiscountPhrase is the receipt's own discount-summary line, which
// must not be re-emitted as a store-wide discount.
const aggregateDiscountPhrase = "erhållen rabatt"

var (
	// Item lines: optional campaign marker, name, 13-digit article number,
	// unit price, quantity, unit, line total. The strict form anchors at the
	// line end; the relaxed form tolerates trailing junk from the text layer.
	itemLineStrict  = regexp.MustCompile(`^(\*?)(.+?)\s+(\d{13})\s+([\d,]+)\s+([\d,]+)\s+(st|kg)\s+([\d,]+)\s*$`)
	itemLineRelaxed = regexp.MustCompile(`^(\*?)(.+?)\s+(\d{13})\s+([\d,]+)\s+([\d,]+)\s+(st|kg)\s+([\d,]+)`)

	negativeAmountPattern = regexp.MustCompile(`-[\d,]+`)
	articleNumberPattern  = regexp.MustCompile(`\d{13}`)
)

// parseItems scans the item section in a single forward pass. Each line is
// either a recognized item, a discount reconciled against the item just
// emitted, a store-wide discount, or skipped. Only the last emitted item is
// ever revisited, so a discount can never reach past its own item.
func (p *Parser) parseItems(lines []string) []receipt.LineItem {
	header := -1
	for i, line := range lines {
		if strings.Contains(line, itemSectionHeader) {
			header = i
			break
		}
	}
	if header < 0 {
		p.log.Debug("no item section header found")
		return nil
	}

	var items []receipt.LineItem
	for i := header + 1; i < len(lines); i++ {
		line := lines[i]
		if terminatesSection(line) {
			p.log.Debug("item section ended", "line", line)
			break
		}

		if item, ok := p.parseItemLine(line); ok {
			items = append(items, item)
			p.log.Debug("recognized item",
				"name", item.Name,
				"price", item.Price,
				"quantity", item.Quantity,
			)
			continue
		}

		items = p.reconcileDiscount(line, items)
	}
	return items
}

// terminatesSection reports whether a line marks the end of the item section
func terminatesSection(line string) bool {
	for _, marker := range sectionTerminators {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

// parseItemLine attempts to extract an item from one line. The line total is
// authoritative: count items get price = total ÷ quantity, weight items keep
// the total as price with the weight folded into the name.
func (p *Parser) parseItemLine(line string) (receipt.LineItem, bool) {
	match := itemLineStrict.FindStringSubmatch(line)
	if match == nil {
		match = itemLineRelaxed.FindStringSubmatch(line)
	}
	if match == nil {
		if len(line) > 10 && articleNumberPattern.MatchString(line) {
			p.log.Debug("line with article number did not match item grammar", "line", line)
		}
		return receipt.LineItem{}, false
	}

	name := strings.TrimSpace(match[2])
	rawQuantity := match[5]
	unit := match[6]
	rawTotal := match[7]

	total, err := ParseDecimal(rawTotal)
	if err != nil {
		p.log.Debug("item total failed to parse", "line", line, "value", rawTotal)
		return receipt.LineItem{}, false
	}
	quantity, err := ParseDecimal(rawQuantity)
	if err != nil || !quantity.IsPositive() {
		p.log.Debug("item quantity failed to parse", "line", line, "value", rawQuantity)
		return receipt.LineItem{}, false
	}

	category := p.lookupCategory(name)

	if unit == "kg" {
		// Weight-priced goods: quantity stays 1 and the weight becomes part
		// of the display name, in the receipt's own comma format.
		weight := strings.ReplaceAll(rawQuantity, ".", ",")
		return receipt.LineItem{
			Name:     fmt.Sprintf("%s (%s kg)", name, weight),
			Price:    total,
			Quantity: 1,
			Category: category,
		}, true
	}

	return receipt.LineItem{
		Name:     name,
		Price:    total.Div(quantity),
		Quantity: int(quantity.Round(0).IntPart()),
		Category: category,
	}, true
}

// reconcileDiscount classifies a line the item grammar rejected. A negative
// amount free of discount-summary wording reduces the item just emitted; any
// other negative amount becomes a standalone store-wide discount line. Lines
// without a negative amount are unrecognized and only logged.
func (p *Parser) reconcileDiscount(line string, items []receipt.LineItem) []receipt.LineItem {
	token := negativeAmountPattern.FindString(line)
	if token == "" {
		return items
	}

	amount, err := ParseDecimal(strings.TrimPrefix(token, "-"))
	if err != nil {
		p.log.Debug("discount amount failed to parse", "line", line, "error", err)
		return items
	}

	if !containsAnyFold(line, discountSummaryPhrases) && len(items) > 0 {
		// Campaign discount for the item on the preceding line.
		last := &items[len(items)-1]
		newSubtotal := last.Subtotal().Sub(amount)
		if newSubtotal.IsNegative() {
			p.log.Debug("discount would make item negative, skipping",
				"line", line,
				"item", last.Name,
			)
			return items
		}
		last.Price = newSubtotal.Div(decimal.NewFromInt(int64(last.Quantity)))
		p.log.Debug("applied item discount",
			"item", last.Name,
			"discount", amount,
			"new_price", last.Price,
		)
		return items
	}

	if strings.Contains(strings.ToLower(line), aggregateDiscountPhrase) {
		return items
	}

	name := strings.TrimSpace(strings.Replace(line, token, "", 1))
	p.log.Debug("store-wide discount", "name", name, "amount", amount)
	return append(items, receipt.LineItem{
		Name:     name,
		Price:    amount.Neg(),
		Quantity: 1,
		Category: receipt.DiscountCategory,
	})
}

// containsAnyFold reports whether line contains any phrase, ignoring case
func containsAnyFold(line string, phrases []string) bool {
	lower := strings.ToLower(line)
	for _, phrase := range phrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}
