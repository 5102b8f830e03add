package receipt

import (
	"time"

	"github.com/zombor/receipt-extractor/internal/extraction"
)

// Source values for Receipt.Source.
const (
	SourceText   = "text"
	SourceUpload = "upload"
)

// Review statuses, from the record's confidence against the service thresholds.
const (
	StatusAccepted = "accepted"
	StatusReview   = "review"
	StatusRescan   = "rescan"
)

// Receipt is a stored extraction result with its metadata
type Receipt struct {
	ID           string                   `json:"id"`
	Source       string                   `json:"source"`
	Filename     string                   `json:"filename,omitempty"`
	ContentType  string                   `json:"content_type,omitempty"`
	AutoAccepted bool                     `json:"auto_accepted"`
	Status       string                   `json:"status"`
	Record       extraction.ReceiptRecord `json:"record"`
	CreatedAt    time.Time                `json:"created_at"`
}
