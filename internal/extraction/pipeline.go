package extraction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// itemsConfidence is the field confidence of a non-empty item list before
// reconciliation weighs it against the subtotal.
const itemsConfidence = 0.8

// EnhanceRequest is sent to an enhancement collaborator.
type EnhanceRequest struct {
	RawText string
	Draft   ReceiptRecord
}

// Enhancer is an external text-understanding collaborator that returns a
// same-shaped partial receipt.
type Enhancer interface {
	Enhance(ctx context.Context, req EnhanceRequest) (*Draft, error)
}

// EnhancementCache stores enhancement results by raw-text key. Load returns
// nil without error on a miss.
type EnhancementCache interface {
	LoadEnhancement(key string) (*Draft, error)
	StoreEnhancement(key string, d *Draft) error
}

// Options tune a Pipeline.
type Options struct {
	Tolerance Tolerance
	// DayFirst resolves numeric dates like 03/04/2025 as day/month.
	DayFirst bool
	// EnhancementTimeout bounds how long Extract waits for the enhancer.
	EnhancementTimeout time.Duration
	// EnhancementBudget bounds the enhancer call itself, which may keep
	// running after Extract returned so its result can be cached.
	EnhancementBudget time.Duration
	Logger            *slog.Logger
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Tolerance:          DefaultTolerance(),
		EnhancementTimeout: 8 * time.Second,
		EnhancementBudget:  60 * time.Second,
	}
}

// Pipeline turns OCR text into a ReceiptRecord. A Pipeline holds no state
// between calls and is safe for concurrent use.
type Pipeline struct {
	opts       Options
	reconciler Reconciler
	enhancer   Enhancer
	cache      EnhancementCache
	logger     *slog.Logger
}

// NewPipeline creates a regex-only pipeline.
func NewPipeline(opts Options) *Pipeline {
	return NewPipelineWithEnhancer(opts, nil, nil)
}

// NewPipelineWithEnhancer creates a pipeline that races the enhancer against
// opts.EnhancementTimeout. Either enhancer or cache may be nil.
func NewPipelineWithEnhancer(opts Options, enhancer Enhancer, cache EnhancementCache) *Pipeline {
	defaults := DefaultOptions()
	if opts.Tolerance.Ratio.IsZero() && opts.Tolerance.Absolute.IsZero() {
		opts.Tolerance = defaults.Tolerance
	}
	if opts.EnhancementTimeout <= 0 {
		opts.EnhancementTimeout = defaults.EnhancementTimeout
	}
	if opts.EnhancementBudget < opts.EnhancementTimeout {
		opts.EnhancementBudget = max(defaults.EnhancementBudget, opts.EnhancementTimeout)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		opts:       opts,
		reconciler: NewReconciler(opts.Tolerance),
		enhancer:   enhancer,
		cache:      cache,
		logger:     logger,
	}
}

// Extract runs the full pipeline. It never fails: input without usable
// signal yields an empty record with confidence 0, and enhancement problems
// leave the deterministic result unchanged.
func (p *Pipeline) Extract(ctx context.Context, in Input) ReceiptRecord {
	if !in.Success || strings.TrimSpace(in.Text) == "" {
		p.logger.Debug("No usable OCR text", "success", in.Success, "length", len(in.Text))
		return Empty(in.Text)
	}

	draft := p.draft(in)
	confidence, issues := p.reconciler.Reconcile(draft)
	record := Assemble(draft, in.Text, confidence, issues)
	if p.enhancer == nil {
		return record
	}

	enhanced, ok := p.enhance(ctx, in.Text, record)
	if !ok {
		return record
	}
	merged := Merge(draft, enhanced.Sanitize())
	if len(merged.Enhanced) == 0 {
		return record
	}
	mergedConfidence, mergedIssues := p.reconciler.Reconcile(merged)
	if mergedConfidence < confidence {
		p.logger.Info("Discarding enhancement that lowers confidence",
			"confidence", confidence, "merged_confidence", mergedConfidence)
		return record
	}
	p.logger.Debug("Merged enhancement", "fields", merged.Enhanced, "confidence", mergedConfidence)
	return Assemble(merged, in.Text, mergedConfidence, mergedIssues)
}

// ExtractDeterministic runs only the regex path. Identical input yields an
// identical record.
func (p *Pipeline) ExtractDeterministic(in Input) ReceiptRecord {
	if !in.Success || strings.TrimSpace(in.Text) == "" {
		return Empty(in.Text)
	}
	draft := p.draft(in)
	confidence, issues := p.reconciler.Reconcile(draft)
	return Assemble(draft, in.Text, confidence, issues)
}

func (p *Pipeline) draft(in Input) Draft {
	lines := Normalize(in.Text)
	draft := extractFields(lines, p.opts.DayFirst)

	section := LocateItems(lines)
	draft.Items = ParseItems(lines[section.Start:section.End])
	if len(draft.Items) > 0 {
		draft.setConfidence(FieldItems, itemsConfidence)
	}
	draft.SourceConfidence = in.Confidence

	p.logger.Debug("Extracted draft",
		"lines", len(lines),
		"section_start", section.Start,
		"section_end", section.End,
		"items", len(draft.Items),
	)
	return draft
}

type enhanceResult struct {
	draft *Draft
	err   error
}

// enhance waits at most EnhancementTimeout for the enhancer. The call itself
// runs detached from ctx so a late answer still reaches the cache.
func (p *Pipeline) enhance(ctx context.Context, raw string, record ReceiptRecord) (Draft, bool) {
	key := CacheKey(raw)
	if p.cache != nil {
		cached, err := p.cache.LoadEnhancement(key)
		if err != nil {
			p.logger.Warn("Failed to load cached enhancement", "error", err)
		} else if cached != nil {
			return *cached, true
		}
	}

	results := make(chan enhanceResult, 1)
	go func() {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.EnhancementBudget)
		defer cancel()
		d, err := p.enhancer.Enhance(callCtx, EnhanceRequest{RawText: raw, Draft: record})
		if err == nil && d == nil {
			err = errors.New("enhancer returned no result")
		}
		if err == nil && p.cache != nil {
			if cerr := p.cache.StoreEnhancement(key, d); cerr != nil {
				p.logger.Warn("Failed to cache enhancement", "error", cerr)
			}
		}
		results <- enhanceResult{draft: d, err: err}
	}()

	timer := time.NewTimer(p.opts.EnhancementTimeout)
	defer timer.Stop()

	select {
	case r := <-results:
		if r.err != nil {
			p.logger.Warn("Enhancement failed", "error", r.err)
			return Draft{}, false
		}
		return *r.draft, true
	case <-timer.C:
		p.logger.Warn("Enhancement timed out", "timeout", p.opts.EnhancementTimeout)
		return Draft{}, false
	case <-ctx.Done():
		p.logger.Info("Enhancement abandoned", "error", ctx.Err())
		return Draft{}, false
	}
}

// CacheKey is the enhancement cache key for raw OCR text.
func CacheKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
