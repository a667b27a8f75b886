package bill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IDGenerator generates unique bill keys
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service is the in-process bill store. It implements Store.
type Service struct {
	db          DB
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with uuid keys and the wall clock
func NewService(db DB, storage Storage) *Service {
	return NewServiceWithDeps(db, storage, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	spaceRuns   = regexp.MustCompile(`\s+`)
)

// sanitizeFilename strips special characters and truncates long phone-generated names
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	base = unsafeChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(spaceRuns.ReplaceAllString(base, " "))

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}

// FileURL is the API path a bill's receipt is served from
func FileURL(key string) string {
	return "/api/bills/" + key + "/file"
}

// Create saves the receipt file and a pending placeholder bill for it
func (s *Service) Create(ctx context.Context, upload *Upload) (*UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if upload == nil || len(upload.Data) == 0 {
		return nil, errors.New("no file provided")
	}
	if !IsAcceptedImage(upload.FileName) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, upload.FileName)
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(upload.FileName)), upload.Data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	fileURL := FileURL(id)
	fileName := upload.FileName
	placeholder := &Bill{
		ID:          id,
		Email:       upload.Email,
		FileURL:     &fileURL,
		FileName:    &fileName,
		Status:      StatusPending,
		StoragePath: savedPath,
		ContentType: ContentTypeFor(upload.FileName),
		Placeholder: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.db.SaveBill(placeholder); err != nil {
		// Clean up file if database save fails
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving bill to database: %w", err)
	}

	return &UploadResult{FileURL: fileURL, Key: id}, nil
}

// Update writes b under key. Store-assigned fields of an existing record are kept.
func (s *Service) Update(ctx context.Context, key string, b *Bill) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return errors.New("bill key required")
	}
	if b == nil {
		return errors.New("bill required")
	}

	now := s.timeSource.Now()
	updated := *b
	updated.ID = key
	updated.UpdatedAt = now
	updated.StoragePath = ""
	updated.ContentType = ""
	updated.Placeholder = false
	if updated.Status == "" {
		updated.Status = StatusPending
	}

	existing, err := s.db.GetBill(key)
	switch {
	case err == nil:
		updated.StoragePath = existing.StoragePath
		updated.ContentType = existing.ContentType
		updated.CreatedAt = existing.CreatedAt
		if updated.FileURL == nil {
			updated.FileURL = existing.FileURL
		}
		if updated.FileName == nil {
			updated.FileName = existing.FileName
		}
	case errors.Is(err, ErrNotFound):
		updated.CreatedAt = now
	default:
		return fmt.Errorf("getting bill %s: %w", key, err)
	}

	if err := s.db.SaveBill(&updated); err != nil {
		return fmt.Errorf("saving bill %s: %w", key, err)
	}
	return nil
}

// List returns all bills. Placeholders whose update never arrived are left out.
func (s *Service) List(ctx context.Context) ([]*Bill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bills, err := s.db.ListBills()
	if err != nil {
		return nil, fmt.Errorf("listing bills: %w", err)
	}
	return slices.DeleteFunc(bills, func(b *Bill) bool {
		return b.Placeholder
	}), nil
}

// Get retrieves a bill by key
func (s *Service) Get(key string) (*Bill, error) {
	b, err := s.db.GetBill(key)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}
	return b, nil
}

// File returns the receipt bytes and content type of a bill
func (s *Service) File(key string) ([]byte, string, error) {
	b, err := s.db.GetBill(key)
	if err != nil {
		return nil, "", fmt.Errorf("getting bill: %w", err)
	}
	if b.StoragePath == "" {
		return nil, "", fmt.Errorf("%w: no receipt for %s", ErrNotFound, key)
	}

	data, err := s.storage.Get(b.StoragePath)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}
	return data, b.ContentType, nil
}

// Delete removes a bill and its receipt file
func (s *Service) Delete(key string) error {
	b, err := s.db.GetBill(key)
	if err != nil {
		return fmt.Errorf("getting bill for deletion: %w", err)
	}

	if b.StoragePath != "" {
		if err := s.storage.Delete(b.StoragePath); err != nil {
			// Log error but continue with database deletion
			slog.Warn("Failed to delete file", "filename", b.StoragePath, "error", err)
		}
	}

	if err := s.db.DeleteBill(key); err != nil {
		return fmt.Errorf("deleting bill from database: %w", err)
	}
	return nil
}
