package parse

import (
	"regexp"
	"strings"
	"time"
)

// defaultStore is used when no store anchor line is present
const defaultStore = "ICA"

// Positional fallbacks for older receipt templates, which print the value a
// fixed number of lines below its label instead of on the label line itself.
const (
	dateLineOffset      = 6
	timeLineOffset      = 7
	receiptNumberOffset = 3
)

var (
	datePattern          = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	timePattern          = regexp.MustCompile(`\d{2}:\d{2}`)
	receiptNumberPattern = regexp.MustCompile(`(?i)Kvitto\s+nr\s+(\d+)`)
	allDigitsPattern     = regexp.MustCompile(`^\d+$`)
)

// dateLayouts are tried in order when parsing a whole line as a date
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// extractStore returns the line following the "Kvitto" anchor line
func (p *Parser) extractStore(lines []string) string {
	for i, line := range lines {
		if strings.Contains(line, "Kvitto") {
			if i+1 < len(lines) {
				return lines[i+1]
			}
			break
		}
	}
	p.log.Debug("no store anchor found, using default", "store", defaultStore)
	return defaultStore
}

// extractDateAndNumber scans the line stream for the transaction date and the
// optional receipt number. The date falls back to the current time, the
// number to empty; neither extraction ever fails the parse.
func (p *Parser) extractDateAndNumber(lines []string) (time.Time, string) {
	date := p.timeSource.Now()

	if idx := findLineFold(lines, "datum"); idx >= 0 {
		if parsed, ok := p.dateFromMarkerLine(lines, idx); ok {
			date = parsed
		} else if parsed, ok := p.dateFromOffset(lines, idx); ok {
			date = parsed
		} else {
			p.log.Debug("date marker found but no usable date", "line", lines[idx])
		}
	}

	return date, p.extractReceiptNumber(lines)
}

// dateFromMarkerLine handles the newer template: a YYYY-MM-DD token on the
// marker line itself, with an optional HH:MM token on the next line.
func (p *Parser) dateFromMarkerLine(lines []string, idx int) (time.Time, bool) {
	token := datePattern.FindString(lines[idx])
	if token == "" {
		return time.Time{}, false
	}
	date, err := time.Parse("2006-01-02", token)
	if err != nil {
		return time.Time{}, false
	}
	if idx+1 < len(lines) {
		date = mergeTime(date, lines[idx+1])
	}
	p.log.Debug("date found on marker line", "date", date)
	return date, true
}

// dateFromOffset handles the older template: the date sits six lines below
// the marker, with the time on the line after that.
func (p *Parser) dateFromOffset(lines []string, idx int) (time.Time, bool) {
	if idx+dateLineOffset >= len(lines) {
		return time.Time{}, false
	}
	line := lines[idx+dateLineOffset]
	for _, layout := range dateLayouts {
		date, err := time.Parse(layout, line)
		if err != nil {
			continue
		}
		if layout == "2006-01-02" && idx+timeLineOffset < len(lines) {
			date = mergeTime(date, lines[idx+timeLineOffset])
		}
		p.log.Debug("date found at line offset", "offset", dateLineOffset, "date", date)
		return date, true
	}
	return time.Time{}, false
}

// mergeTime folds an HH:MM token found in line into a date's time of day
func mergeTime(date time.Time, line string) time.Time {
	token := timePattern.FindString(line)
	if token == "" {
		return date
	}
	t, err := time.Parse("15:04", token)
	if err != nil {
		return date
	}
	return date.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
}

// extractReceiptNumber finds the digit run after the "Kvitto nr" label, or
// falls back to an all-digit line a fixed offset below it.
func (p *Parser) extractReceiptNumber(lines []string) string {
	idx := findLineFold(lines, "kvitto nr")
	if idx < 0 {
		p.log.Debug("no receipt number label found")
		return ""
	}

	if m := receiptNumberPattern.FindStringSubmatch(lines[idx]); m != nil {
		p.log.Debug("receipt number found on label line", "number", m[1])
		return m[1]
	}

	if idx+receiptNumberOffset < len(lines) {
		candidate := lines[idx+receiptNumberOffset]
		if allDigitsPattern.MatchString(candidate) {
			p.log.Debug("receipt number found at line offset", "number", candidate)
			return candidate
		}
	}
	return ""
}

// findLineFold returns the index of the first line containing marker,
// ignoring case, or -1.
func findLineFold(lines []string, marker string) int {
	for i, line := range lines {
		if strings.Contains(strings.ToLower(line), marker) {
			return i
		}
	}
	return -1
}
