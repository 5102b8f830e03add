package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/receipt-extractor/internal/extraction"
)

// ErrNoRecognizer is returned when an upload arrives and no OCR is configured
var ErrNoRecognizer = errors.New("no OCR recognizer configured")

// IDGenerator generates unique IDs for receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// Extractor turns OCR output into a receipt record
type Extractor interface {
	Extract(ctx context.Context, in extraction.Input) extraction.ReceiptRecord
}

// Recognizer turns an uploaded file into OCR output
type Recognizer interface {
	Recognize(ctx context.Context, data []byte, contentType string) (extraction.Input, error)
}

// Thresholds decide a receipt's review status from its confidence
type Thresholds struct {
	AutoAccept float64
	Review     float64
}

// status returns StatusAccepted at or above AutoAccept, StatusReview at or
// above Review, and StatusRescan below that.
func (t Thresholds) status(record extraction.ReceiptRecord) string {
	switch {
	case !record.NeedsReview(t.AutoAccept):
		return StatusAccepted
	case !record.NeedsReview(t.Review):
		return StatusReview
	default:
		return StatusRescan
	}
}

// uuidGenerator generates random UUIDs
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles receipt operations
type Service struct {
	db          DB
	extractor   Extractor
	recognizer  Recognizer
	thresholds  Thresholds
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source.
// recognizer may be nil, in which case uploads are rejected.
func NewService(db DB, extractor Extractor, recognizer Recognizer, thresholds Thresholds) *Service {
	return NewServiceWithDeps(db, extractor, recognizer, thresholds, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, extractor Extractor, recognizer Recognizer, thresholds Thresholds, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		extractor:   extractor,
		recognizer:  recognizer,
		thresholds:  thresholds,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	filenameUnsafe = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	filenameSpaces = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	base = filenameUnsafe.ReplaceAllString(base, "")
	base = filenameSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	// Phone cameras produce very long names
	const maxLen = 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "receipt"
	}
	if ext = filenameUnsafe.ReplaceAllString(strings.TrimPrefix(ext, "."), ""); ext != "" {
		base += "." + strings.ToLower(ext)
	}
	return base
}

// newReceipt wraps a record with a fresh ID and timestamp
func (s *Service) newReceipt(source string, record extraction.ReceiptRecord) *Receipt {
	status := s.thresholds.status(record)
	return &Receipt{
		ID:           s.idGenerator.Generate(),
		Source:       source,
		AutoAccepted: status == StatusAccepted,
		Status:       status,
		Record:       record,
		CreatedAt:    s.timeSource.Now(),
	}
}

// ExtractText runs the pipeline on already-recognized text and saves the result
func (s *Service) ExtractText(ctx context.Context, in extraction.Input) (*Receipt, error) {
	record := s.extractor.Extract(ctx, in)
	receipt := s.newReceipt(SourceText, record)

	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("saving receipt: %w", err)
	}

	slog.Info("Extracted receipt",
		"id", receipt.ID,
		"confidence", record.Confidence,
		"issues", len(record.Issues),
		"status", receipt.Status)
	return receipt, nil
}

// ScanReceipt recognizes an uploaded file, runs the pipeline and saves the result
func (s *Service) ScanReceipt(ctx context.Context, filename string, data []byte, contentType string) (*Receipt, error) {
	if s.recognizer == nil {
		return nil, ErrNoRecognizer
	}

	in, err := s.recognizer.Recognize(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to recognize receipt",
			"filename", filename,
			"content_type", contentType,
			"size", len(data),
			"error", err)
		return nil, fmt.Errorf("recognizing receipt: %w", err)
	}

	record := s.extractor.Extract(ctx, in)
	receipt := s.newReceipt(SourceUpload, record)
	receipt.Filename = sanitizeFilename(filename)
	receipt.ContentType = contentType

	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("saving receipt: %w", err)
	}

	slog.Info("Scanned receipt",
		"id", receipt.ID,
		"filename", receipt.Filename,
		"ocr_success", in.Success,
		"confidence", record.Confidence,
		"status", receipt.Status)
	return receipt, nil
}

// GetReceipt retrieves a receipt by ID
func (s *Service) GetReceipt(id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns all receipts, newest first
func (s *Service) ListReceipts() ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return receipts, nil
}

// DeleteReceipt deletes a receipt
func (s *Service) DeleteReceipt(id string) error {
	if err := s.db.DeleteReceipt(id); err != nil {
		return fmt.Errorf("deleting receipt: %w", err)
	}
	return nil
}
