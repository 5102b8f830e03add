// Package enhance asks a language model to fill in receipt fields the
// deterministic extraction could not find.
package enhance

import (
	"github.com/zombor/receipt-extractor/internal/extraction"
)

// Client is an enhancement collaborator backed by a model provider.
type Client interface {
	extraction.Enhancer
	// Close releases the provider's resources
	Close() error
}
