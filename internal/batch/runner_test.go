package batch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graysonchalmers/art-metadata-batch/internal/catalog"
	"github.com/graysonchalmers/art-metadata-batch/internal/llm"
)

// scriptedAnalyzer returns canned results keyed by original file content.
type scriptedAnalyzer struct {
	mu       sync.Mutex
	calls    []string
	failFor  map[string]bool
	inflight int
	maxSeen  int
}

func (s *scriptedAnalyzer) AnalyzeImage(ctx context.Context, data []byte, mimeType string) (*llm.AnalysisResult, error) {
	s.mu.Lock()
	s.inflight++
	if s.inflight > s.maxSeen {
		s.maxSeen = s.inflight
	}
	key := string(data)
	s.calls = append(s.calls, key)
	fail := s.failFor[key]
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}()

	if fail {
		return nil, errors.New("service unavailable")
	}
	return &llm.AnalysisResult{
		Metadata: &llm.ImageMetadata{
			Filename:    "file-" + key,
			Title:       "Title " + key,
			Description: "Description " + key,
			Tags:        []string{key},
		},
	}, nil
}

func TestGenerateAllSequential(t *testing.T) {
	store := catalog.NewStore()
	a := store.Add("a.png", "image/png", []byte("a"), nil)
	b := store.Add("b.png", "image/png", []byte("b"), nil)

	analyzer := &scriptedAnalyzer{}
	runner := NewRunner(store, analyzer, 1)

	result := runner.GenerateAll(context.Background())
	assert.Equal(t, Result{Analyzed: 2}, result)
	assert.Equal(t, []string{"a", "b"}, analyzer.calls, "items analyzed in collection order")
	assert.Equal(t, 1, analyzer.maxSeen, "no two analyses run concurrently")

	for _, id := range []string{a, b} {
		item, _ := store.Get(id)
		assert.Equal(t, catalog.StatusSuccess, item.Status)
		require.NotNil(t, item.Metadata)
		assert.NotEmpty(t, item.Metadata.Filename)
		assert.NotEmpty(t, item.Metadata.Tags)
	}
}

func TestGenerateAllSkipsSuccessAndKeepsEdits(t *testing.T) {
	store := catalog.NewStore()
	done := store.Add("done.png", "image/png", []byte("done"), nil)
	pending := store.Add("new.png", "image/png", []byte("new"), nil)

	require.NoError(t, store.MarkLoading(done))
	require.NoError(t, store.MarkSuccess(done, catalog.Metadata{Title: "Original"}))
	require.NoError(t, store.UpdateField(done, catalog.FieldTitle, "Edited"))

	analyzer := &scriptedAnalyzer{}
	runner := NewRunner(store, analyzer, 1)

	result := runner.GenerateAll(context.Background())
	assert.Equal(t, Result{Analyzed: 1, Skipped: 1}, result)
	assert.Equal(t, []string{"new"}, analyzer.calls)

	item, _ := store.Get(done)
	assert.Equal(t, "Edited", item.Metadata.Title, "success item untouched by generateAll")
	_ = pending
}

func TestGenerateAllContainsFailures(t *testing.T) {
	store := catalog.NewStore()
	bad := store.Add("bad.png", "image/png", []byte("bad"), nil)
	good := store.Add("good.png", "image/png", []byte("good"), nil)

	analyzer := &scriptedAnalyzer{failFor: map[string]bool{"bad": true}}
	runner := NewRunner(store, analyzer, 1)

	result := runner.GenerateAll(context.Background())
	assert.Equal(t, Result{Analyzed: 1, Failed: 1}, result)

	badItem, _ := store.Get(bad)
	assert.Equal(t, catalog.StatusError, badItem.Status)
	assert.NotEmpty(t, badItem.Error)

	goodItem, _ := store.Get(good)
	assert.Equal(t, catalog.StatusSuccess, goodItem.Status)

	// Errored items are eligible again on the next run.
	analyzer.failFor = nil
	result = runner.GenerateAll(context.Background())
	assert.Equal(t, Result{Analyzed: 1, Skipped: 1}, result)
	badItem, _ = store.Get(bad)
	assert.Equal(t, catalog.StatusSuccess, badItem.Status)
}

func TestGenerateAllBoundedPool(t *testing.T) {
	store := catalog.NewStore()
	for i := 0; i < 8; i++ {
		store.Add("f.png", "image/png", []byte{byte('a' + i)}, nil)
	}

	analyzer := &scriptedAnalyzer{}
	runner := NewRunner(store, analyzer, 3)

	result := runner.GenerateAll(context.Background())
	assert.Equal(t, Result{Analyzed: 8}, result)
	assert.LessOrEqual(t, analyzer.maxSeen, 3, "pool must stay bounded")
}

func TestGenerateOneRegenerates(t *testing.T) {
	store := catalog.NewStore()
	id := store.Add("a.png", "image/png", []byte("a"), nil)

	analyzer := &scriptedAnalyzer{}
	runner := NewRunner(store, analyzer, 1)

	require.NoError(t, runner.GenerateOne(context.Background(), id))
	require.NoError(t, store.UpdateField(id, catalog.FieldTitle, "Edited"))

	// Regenerating replaces edits with a fresh analysis.
	require.NoError(t, runner.GenerateOne(context.Background(), id))
	item, _ := store.Get(id)
	assert.Equal(t, "Title a", item.Metadata.Title)

	assert.Error(t, runner.GenerateOne(context.Background(), "missing"))
}
