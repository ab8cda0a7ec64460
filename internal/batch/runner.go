// Package batch drives metadata analysis over the item collection.
package batch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/graysonchalmers/art-metadata-batch/internal/catalog"
	"github.com/graysonchalmers/art-metadata-batch/internal/llm"
)

// Result summarizes one GenerateAll run.
type Result struct {
	Analyzed int `json:"analyzed"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// Runner walks the item collection and invokes the analyzer per item.
type Runner struct {
	store       *catalog.Store
	analyzer    llm.Analyzer
	concurrency int
}

// NewRunner creates a runner. concurrency 1 analyzes items strictly
// sequentially; higher values run a bounded worker pool. Items are
// independent, so order of completion carries no meaning beyond status
// updates becoming visible per item as they finish.
func NewRunner(store *catalog.Store, analyzer llm.Analyzer, concurrency int) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{store: store, analyzer: analyzer, concurrency: concurrency}
}

// GenerateAll analyzes every item whose status is idle or error at call
// time. Items already successful keep their metadata and edits. Per-item
// failures are recorded on the item and never stop the run.
func (r *Runner) GenerateAll(ctx context.Context) Result {
	var eligible []*catalog.Item
	result := Result{}
	for _, item := range r.store.List() {
		if item.Status == catalog.StatusIdle || item.Status == catalog.StatusError {
			eligible = append(eligible, item)
		} else {
			result.Skipped++
		}
	}

	log.Info().
		Int("eligible", len(eligible)).
		Int("skipped", result.Skipped).
		Int("concurrency", r.concurrency).
		Msg("starting batch analysis")

	if r.concurrency == 1 {
		for _, item := range eligible {
			if ctx.Err() != nil {
				break
			}
			if r.analyzeOne(ctx, item) {
				result.Analyzed++
			} else {
				result.Failed++
			}
		}
		return result
	}

	ok := make([]bool, len(eligible))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, item := range eligible {
		g.Go(func() error {
			ok[i] = r.analyzeOne(gctx, item)
			return nil
		})
	}
	_ = g.Wait()

	for _, succeeded := range ok {
		if succeeded {
			result.Analyzed++
		} else {
			result.Failed++
		}
	}
	return result
}

// GenerateOne (re)analyzes a single item. Unlike GenerateAll it also accepts
// items in success status, discarding their previous metadata. Returns an
// error only when analysis could not be started; analysis failures land on
// the item record.
func (r *Runner) GenerateOne(ctx context.Context, id string) error {
	item, ok := r.store.Get(id)
	if !ok {
		return fmt.Errorf("item %s not found", id)
	}
	if item.Status == catalog.StatusLoading {
		return fmt.Errorf("item %s is already being analyzed", id)
	}
	r.analyzeOne(ctx, item)
	return nil
}

// analyzeOne runs a single analysis and records the outcome on the item.
// Reports whether the item reached success.
func (r *Runner) analyzeOne(ctx context.Context, item *catalog.Item) bool {
	if err := r.store.MarkLoading(item.ID); err != nil {
		// The item was deleted or picked up since the snapshot.
		log.Warn().Err(err).Str("itemId", item.ID).Msg("skipping analysis")
		return false
	}

	res, err := r.analyzer.AnalyzeImage(ctx, item.Data, item.MIMEType)
	if err != nil {
		log.Error().Err(err).
			Str("itemId", item.ID).
			Str("originalName", item.OriginalName).
			Msg("analysis failed")
		if markErr := r.store.MarkError(item.ID, llm.UserMessage(err)); markErr != nil {
			log.Warn().Err(markErr).Str("itemId", item.ID).Msg("item vanished during analysis")
		}
		return false
	}

	md := catalog.Metadata{
		Filename:    res.Metadata.Filename,
		Title:       res.Metadata.Title,
		Description: res.Metadata.Description,
		Tags:        res.Metadata.Tags,
	}
	if err := r.store.MarkSuccess(item.ID, md); err != nil {
		log.Warn().Err(err).Str("itemId", item.ID).Msg("item vanished during analysis")
		return false
	}
	return true
}
