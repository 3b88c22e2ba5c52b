package receipt

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Parser turns an uploaded receipt document into a Receipt.
type Parser interface {
	// ParsePDF extracts the text layer of a PDF receipt and parses it
	ParsePDF(data []byte) (*Receipt, error)
	// ParseKivra parses a Kivra XML receipt
	ParseKivra(data []byte) (*Receipt, error)
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

var (
	// ErrNoItems reports that a document parsed cleanly but contained no
	// recognizable items. The parse itself never fails on content; an empty
	// item list is the only "nothing usable" signal.
	ErrNoItems = errors.New("no items could be parsed from the receipt")

	// ErrDuplicate reports that an equivalent receipt is already stored
	ErrDuplicate = errors.New("receipt already exists")

	// ErrUnsupportedFormat reports an upload that is neither PDF nor Kivra XML
	ErrUnsupportedFormat = errors.New("unsupported receipt format")
)

// Service handles receipt operations
type Service struct {
	db         DB
	parser     Parser
	storage    Storage
	timeSource TimeSource
}

// NewService creates a new Service with the default time source
func NewService(db DB, parser Parser, storage Storage) *Service {
	return &Service{
		db:         db,
		parser:     parser,
		storage:    storage,
		timeSource: &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with a custom time source for testing
func NewServiceWithDeps(db DB, parser Parser, storage Storage, timeSrc TimeSource) *Service {
	return &Service{
		db:         db,
		parser:     parser,
		storage:    storage,
		timeSource: timeSrc,
	}
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	// Remove special characters, keep only alphanumeric, spaces, hyphens, and underscores
	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")

	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// isKivra reports whether the upload looks like a Kivra XML document
func isKivra(filename, contentType string) bool {
	switch contentType {
	case "text/xml", "application/xml":
		return true
	}
	return strings.EqualFold(filepath.Ext(filename), ".xml")
}

// isPDF reports whether the upload looks like a PDF document
func isPDF(filename, contentType string) bool {
	if contentType == "application/pdf" {
		return true
	}
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

// ProcessReceipt parses an uploaded document, rejects empty or duplicate
// results, stores the original file and saves the record.
func (s *Service) ProcessReceipt(filename string, data []byte, contentType string) (*Receipt, error) {
	now := s.timeSource.Now()

	var (
		rec *Receipt
		err error
	)
	switch {
	case isKivra(filename, contentType):
		rec, err = s.parser.ParseKivra(data)
	case isPDF(filename, contentType):
		rec, err = s.parser.ParsePDF(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, contentType)
	}
	if err != nil {
		slog.Error("Failed to parse receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("parsing receipt: %w", err)
	}

	if len(rec.Items) == 0 {
		return nil, ErrNoItems
	}

	dup, err := s.db.IsDuplicate(rec)
	if err != nil {
		return nil, fmt.Errorf("checking for duplicate: %w", err)
	}
	if dup {
		return nil, fmt.Errorf("%w: %s %s", ErrDuplicate, rec.Store, rec.Date.Format("2006-01-02"))
	}

	cleanFilename := sanitizeFilename(filename)
	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", rec.ID, cleanFilename), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	rec.Filename = savedPath
	rec.ContentType = contentType
	rec.CreatedAt = now
	rec.UpdatedAt = now

	if err := s.db.SaveReceipt(rec); err != nil {
		// Clean up file if database save fails
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}

	return rec, nil
}

// GetReceipt retrieves a receipt by ID
func (s *Service) GetReceipt(id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns all receipts sorted by date
func (s *Service) ListReceipts() ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	sort.Slice(receipts, func(i, j int) bool {
		return receipts[i].Date.Before(receipts[j].Date)
	})
	return receipts, nil
}

// DeleteReceipt removes a receipt and its stored source document
func (s *Service) DeleteReceipt(id string) error {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return fmt.Errorf("getting receipt for deletion: %w", err)
	}

	if receipt.Filename != "" {
		if err := s.storage.Delete(receipt.Filename); err != nil {
			// Log error but continue with database deletion
			slog.Warn("Failed to delete file", "filename", receipt.Filename, "error", err)
		}
	}

	if err := s.db.DeleteReceipt(id); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}
	return nil
}

// GetReceiptFile retrieves the stored source document for a receipt
func (s *Service) GetReceiptFile(id string) ([]byte, string, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt: %w", err)
	}

	data, err := s.storage.Get(receipt.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}

	return data, receipt.ContentType, nil
}

// ListCategories returns all categories with their item memberships
func (s *Service) ListCategories() ([]*Category, error) {
	categories, err := s.db.ListCategories()
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	sort.Slice(categories, func(i, j int) bool {
		return strings.ToLower(categories[i].Name) < strings.ToLower(categories[j].Name)
	})
	return categories, nil
}

// containsFold reports whether list contains s, ignoring case
func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// removeFold removes every case-insensitive occurrence of s from list
func removeFold(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if !strings.EqualFold(v, s) {
			out = append(out, v)
		}
	}
	return out
}

// AssignItemCategory adds an item name to a category (creating the category
// if needed) and back-fills the category onto matching items in stored receipts.
func (s *Service) AssignItemCategory(itemName, categoryName string) error {
	category, err := s.db.GetCategory(categoryName)
	if err != nil {
		category = &Category{Name: categoryName}
	}

	if !containsFold(category.Items, itemName) {
		category.Items = append(category.Items, itemName)
	}

	if err := s.db.SaveCategory(category); err != nil {
		return fmt.Errorf("saving category: %w", err)
	}

	return s.retagItems(itemName, category.Name)
}

// RenameCategory renames a category and updates every stored receipt item
// tagged with the old name.
func (s *Service) RenameCategory(oldName, newName string) error {
	category, err := s.db.GetCategory(oldName)
	if err != nil {
		return fmt.Errorf("getting category: %w", err)
	}

	if err := s.db.DeleteCategory(oldName); err != nil {
		return fmt.Errorf("deleting old category: %w", err)
	}
	category.Name = newName
	if err := s.db.SaveCategory(category); err != nil {
		return fmt.Errorf("saving renamed category: %w", err)
	}

	return s.retagCategory(oldName, newName)
}

// DeleteCategory removes a category and clears it from stored receipt items
func (s *Service) DeleteCategory(name string) error {
	if err := s.db.DeleteCategory(name); err != nil {
		return fmt.Errorf("deleting category: %w", err)
	}
	return s.retagCategory(name, "")
}

// MoveItemToCategory moves an item from one category to another. The old
// category is removed entirely once its last item leaves.
func (s *Service) MoveItemToCategory(itemName, oldCategory, newCategory string) error {
	if category, err := s.db.GetCategory(oldCategory); err == nil {
		category.Items = removeFold(category.Items, itemName)
		if len(category.Items) == 0 {
			if err := s.db.DeleteCategory(oldCategory); err != nil {
				return fmt.Errorf("deleting emptied category: %w", err)
			}
		} else if err := s.db.SaveCategory(category); err != nil {
			return fmt.Errorf("saving category: %w", err)
		}
	}

	return s.AssignItemCategory(itemName, newCategory)
}

// RemoveItemFromCategory removes an item from a category and clears the
// category from matching stored receipt items.
func (s *Service) RemoveItemFromCategory(itemName, categoryName string) error {
	category, err := s.db.GetCategory(categoryName)
	if err != nil {
		return fmt.Errorf("getting category: %w", err)
	}

	category.Items = removeFold(category.Items, itemName)
	if len(category.Items) == 0 {
		if err := s.db.DeleteCategory(categoryName); err != nil {
			return fmt.Errorf("deleting emptied category: %w", err)
		}
	} else if err := s.db.SaveCategory(category); err != nil {
		return fmt.Errorf("saving category: %w", err)
	}

	return s.retagItems(itemName, "")
}

// retagItems sets the category field on every stored receipt item whose name
// matches itemName. Totals are untouched; category edits never change prices.
func (s *Service) retagItems(itemName, category string) error {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return fmt.Errorf("listing receipts: %w", err)
	}
	now := s.timeSource.Now()

	for _, r := range receipts {
		changed := false
		for i := range r.Items {
			if strings.EqualFold(r.Items[i].Name, itemName) && r.Items[i].Category != category {
				r.Items[i].Category = category
				changed = true
			}
		}
		if changed {
			r.UpdatedAt = now
			if err := s.db.SaveReceipt(r); err != nil {
				return fmt.Errorf("updating receipt %s: %w", r.ID, err)
			}
		}
	}
	return nil
}

// retagCategory rewrites the category field on every stored receipt item
// currently tagged with oldCategory.
func (s *Service) retagCategory(oldCategory, newCategory string) error {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return fmt.Errorf("listing receipts: %w", err)
	}
	now := s.timeSource.Now()

	for _, r := range receipts {
		changed := false
		for i := range r.Items {
			if strings.EqualFold(r.Items[i].Category, oldCategory) {
				r.Items[i].Category = newCategory
				changed = true
			}
		}
		if changed {
			r.UpdatedAt = now
			if err := s.db.SaveReceipt(r); err != nil {
				return fmt.Errorf("updating receipt %s: %w", r.ID, err)
			}
		}
	}
	return nil
}

// ExpensesByPeriod reports spending for one billing period. Periods run from
// the 25th of the given month through the 24th of the next.
func (s *Service) ExpensesByPeriod(year int, month time.Month) (*ExpensePeriod, error) {
	start := time.Date(year, month, 25, 0, 0, 0, 0, time.Local)
	end := start.AddDate(0, 1, -1)
	return s.expensesBetween(start, endOfDay(end))
}

// CurrentPeriod reports spending for the billing period containing today
func (s *Service) CurrentPeriod() (*ExpensePeriod, error) {
	now := s.timeSource.Now()
	year, month := now.Year(), now.Month()
	if now.Day() < 25 {
		if month == time.January {
			year, month = year-1, time.December
		} else {
			month--
		}
	}
	return s.ExpensesByPeriod(year, month)
}

// ExpensesByDateRange reports spending between two dates, inclusive.
// Time-of-day on the bounds is ignored.
func (s *Service) ExpensesByDateRange(start, end time.Time) (*ExpensePeriod, error) {
	start = startOfDay(start)
	end = endOfDay(end)
	return s.expensesBetween(start, end)
}

// ItemsByDateRange returns every item purchased between two dates, sorted by name
func (s *Service) ItemsByDateRange(start, end time.Time) ([]LineItem, error) {
	period, err := s.ExpensesByDateRange(start, end)
	if err != nil {
		return nil, err
	}

	items := make([]LineItem, 0)
	for _, r := range period.Receipts {
		items = append(items, r.Items...)
	}
	sort.Slice(items, func(i, j int) bool {
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
	return items, nil
}

func (s *Service) expensesBetween(start, end time.Time) (*ExpensePeriod, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}

	inPeriod := make([]*Receipt, 0)
	for _, r := range receipts {
		if !r.Date.Before(start) && !r.Date.After(end) {
			inPeriod = append(inPeriod, r)
		}
	}
	sort.Slice(inPeriod, func(i, j int) bool {
		return inPeriod[i].Date.Before(inPeriod[j].Date)
	})

	total := decimal.Zero
	byCategory := make(map[string]decimal.Decimal)
	for _, r := range inPeriod {
		total = total.Add(r.Total)
		for _, item := range r.Items {
			byCategory[item.Category] = byCategory[item.Category].Add(item.Subtotal())
		}
	}

	return &ExpensePeriod{
		StartDate:  start,
		EndDate:    end,
		Receipts:   inPeriod,
		Total:      total,
		ByCategory: byCategory,
	}, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
