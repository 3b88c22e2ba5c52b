package receipt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.etcd.io/bbolt"
)

const (
	receiptBucketName  = "receipts"
	categoryBucketName = "categories"
)

// duplicateTotalTolerance is how close two receipt totals have to be for the
// date+store+total duplicate fallback to consider them the same purchase.
var duplicateTotalTolerance = decimal.New(1, -2)

// DB defines the interface for database operations
type DB interface {
	// SaveReceipt saves a receipt to the database
	SaveReceipt(receipt *Receipt) error

	// GetReceipt retrieves a receipt by ID
	GetReceipt(id string) (*Receipt, error)

	// ListReceipts returns all receipts
	ListReceipts() ([]*Receipt, error)

	// DeleteReceipt removes a receipt from the database
	DeleteReceipt(id string) error

	// SaveCategory saves a category and its item memberships
	SaveCategory(category *Category) error

	// GetCategory retrieves a category by name (case-insensitive)
	GetCategory(name string) (*Category, error)

	// ListCategories returns all categories
	ListCategories() ([]*Category, error)

	// DeleteCategory removes a category
	DeleteCategory(name string) error

	// LookupCategory returns the category name an item belongs to, if any.
	// Item names match case-insensitively.
	LookupCategory(itemName string) (string, bool)

	// IsDuplicate reports whether an equivalent receipt is already stored
	IsDuplicate(receipt *Receipt) (bool, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	// Create buckets if they don't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(receiptBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(categoryBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveReceipt saves a receipt to the database
func (b *BoltDB) SaveReceipt(receipt *Receipt) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		data, err := json.Marshal(receipt)
		if err != nil {
			return fmt.Errorf("marshaling receipt: %w", err)
		}
		return bucket.Put([]byte(receipt.ID), data)
	})
}

// GetReceipt retrieves a receipt by ID
func (b *BoltDB) GetReceipt(id string) (*Receipt, error) {
	var receipt *Receipt
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("receipt not found: %s", id)
		}
		return json.Unmarshal(data, &receipt)
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// ListReceipts returns all receipts
func (b *BoltDB) ListReceipts() ([]*Receipt, error) {
	receipts := make([]*Receipt, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var receipt Receipt
			if err := json.Unmarshal(v, &receipt); err != nil {
				return fmt.Errorf("unmarshaling receipt: %w", err)
			}
			receipts = append(receipts, &receipt)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

// DeleteReceipt removes a receipt from the database
func (b *BoltDB) DeleteReceipt(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		return bucket.Delete([]byte(id))
	})
}

// categoryKey returns the bucket key for a category name. Keys are
// lower-cased so category lookups stay case-insensitive.
func categoryKey(name string) []byte {
	return []byte(strings.ToLower(strings.TrimSpace(name)))
}

// SaveCategory saves a category and its item memberships
func (b *BoltDB) SaveCategory(category *Category) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(categoryBucketName))
		data, err := json.Marshal(category)
		if err != nil {
			return fmt.Errorf("marshaling category: %w", err)
		}
		return bucket.Put(categoryKey(category.Name), data)
	})
}

// GetCategory retrieves a category by name (case-insensitive)
func (b *BoltDB) GetCategory(name string) (*Category, error) {
	var category *Category
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(categoryBucketName))
		data := bucket.Get(categoryKey(name))
		if data == nil {
			return fmt.Errorf("category not found: %s", name)
		}
		return json.Unmarshal(data, &category)
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

// ListCategories returns all categories
func (b *BoltDB) ListCategories() ([]*Category, error) {
	categories := make([]*Category, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(categoryBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var category Category
			if err := json.Unmarshal(v, &category); err != nil {
				return fmt.Errorf("unmarshaling category: %w", err)
			}
			categories = append(categories, &category)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// DeleteCategory removes a category
func (b *BoltDB) DeleteCategory(name string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(categoryBucketName))
		return bucket.Delete(categoryKey(name))
	})
}

// LookupCategory returns the category name an item belongs to, if any
func (b *BoltDB) LookupCategory(itemName string) (string, bool) {
	categories, err := b.ListCategories()
	if err != nil {
		return "", false
	}
	for _, category := range categories {
		for _, item := range category.Items {
			if strings.EqualFold(item, itemName) {
				return category.Name, true
			}
		}
	}
	return "", false
}

// IsDuplicate reports whether an equivalent receipt is already stored.
// A receipt-number+store match is the most reliable signal; receipts without
// a number fall back to matching date, store and total.
func (b *BoltDB) IsDuplicate(receipt *Receipt) (bool, error) {
	stored, err := b.ListReceipts()
	if err != nil {
		return false, err
	}

	if receipt.ReceiptNumber != "" {
		for _, r := range stored {
			if r.ReceiptNumber == receipt.ReceiptNumber && r.Store == receipt.Store {
				return true, nil
			}
		}
	}

	y, m, d := receipt.Date.Date()
	for _, r := range stored {
		ry, rm, rd := r.Date.Date()
		if ry == y && rm == m && rd == d && r.Store == receipt.Store &&
			r.Total.Sub(receipt.Total).Abs().LessThan(duplicateTotalTolerance) {
			return true, nil
		}
	}
	return false, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
