package bill

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no bill exists for a key
	ErrNotFound = errors.New("bill not found")

	// ErrUnsupportedFormat is returned for receipts that are not jpg, jpeg or png
	ErrUnsupportedFormat = errors.New("unsupported receipt format")
)

// Status is the review state of a bill
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRefused  Status = "refused"
)

// DefaultPct is the VAT percentage used when none is given
const DefaultPct = 20

// Bill represents one expense report submitted by an employee
type Bill struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Type       string    `json:"type"` // Expense category
	Name       string    `json:"name"`
	Amount     int       `json:"amount"`
	Date       string    `json:"date"` // As entered, e.g. 2004-04-04
	VAT        string    `json:"vat"`
	Pct        int       `json:"pct"`
	Commentary string    `json:"commentary"`
	FileURL    *string   `json:"fileUrl"`
	FileName   *string   `json:"fileName"`
	Status     Status    `json:"status"`

	// Set by the store, never by clients
	StoragePath string    `json:"storage_path,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Placeholder bool      `json:"placeholder,omitempty"` // Reserved by Create, not yet updated
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Upload is a staged receipt file together with the email of its owner.
// ContentType only labels the transfer; the store derives its own from FileName.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
	Email       string
}

// UploadResult is what the store hands back after receiving a receipt
type UploadResult struct {
	FileURL string `json:"fileUrl"`
	Key     string `json:"key"`
}

// Store is the persistence API the web client talks to
type Store interface {
	// List returns every bill
	List(ctx context.Context) ([]*Bill, error)

	// Create stores a receipt file and reserves a bill key for it
	Create(ctx context.Context, upload *Upload) (*UploadResult, error)

	// Update writes the bill under key, creating it when missing
	Update(ctx context.Context, key string, b *Bill) error
}

var acceptedImage = regexp.MustCompile(`(?i)\.(jpg|jpeg|png)$`)

// IsAcceptedImage reports whether the filename carries a jpg, jpeg or png extension
func IsAcceptedImage(filename string) bool {
	return acceptedImage.MatchString(filename)
}

// ContentTypeFor guesses a content type from the filename extension
func ContentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// SortByDateDesc orders bills from the most recent date to the oldest.
// Dates are compared as raw strings and equal dates keep their input order.
func SortByDateDesc(bills []*Bill) {
	slices.SortStableFunc(bills, func(a, b *Bill) int {
		return strings.Compare(b.Date, a.Date)
	})
}
