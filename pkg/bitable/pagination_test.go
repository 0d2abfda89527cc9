package bitable_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fivetwenty-io/bitable-client/pkg/bitable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockSearcher serves pages keyed by the requested page token.
type MockSearcher struct {
	pages map[string]*bitable.SearchResult
	calls []string
	err   error
}

func (m *MockSearcher) Search(ctx context.Context, opts *bitable.SearchOptions) (*bitable.SearchResult, error) {
	m.calls = append(m.calls, opts.PageToken)

	if m.err != nil {
		return nil, m.err
	}

	result, ok := m.pages[opts.PageToken]
	if !ok {
		return &bitable.SearchResult{Items: []bitable.Record{}}, nil
	}

	return result, nil
}

func records(ids ...string) []bitable.Record {
	out := make([]bitable.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, bitable.Record{RecordID: id})
	}

	return out
}

func threePages() *MockSearcher {
	return &MockSearcher{pages: map[string]*bitable.SearchResult{
		"":   {Items: records("r1", "r2"), HasMore: true, PageToken: "p2"},
		"p2": {Items: records("r3", "r4"), HasMore: true, PageToken: "p3"},
		"p3": {Items: records("r5"), HasMore: false},
	}}
}

func ids(recs []bitable.Record) []string {
	out := make([]string, 0, len(recs))
	for _, record := range recs {
		out = append(out, record.RecordID)
	}

	return out
}

func TestIteratePages(t *testing.T) {
	t.Parallel()
	t.Run("walks all pages", func(t *testing.T) {
		t.Parallel()

		searcher := threePages()

		var got []bitable.Record

		err := bitable.IteratePages(context.Background(), searcher, &bitable.SearchOptions{PageSize: 2}, nil, func(batch []bitable.Record) error {
			got = append(got, batch...)

			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"r1", "r2", "r3", "r4", "r5"}, ids(got))
		assert.Equal(t, []string{"", "p2", "p3"}, searcher.calls)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		searcher := threePages()

		err := bitable.IteratePages(ctx, searcher, nil, nil, func([]bitable.Record) error { return nil })
		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, searcher.calls)
	})

	t.Run("search error", func(t *testing.T) {
		t.Parallel()

		failure := errors.New("search failed")
		searcher := &MockSearcher{err: failure}

		err := bitable.IteratePages(context.Background(), searcher, nil, nil, func([]bitable.Record) error { return nil })
		require.ErrorIs(t, err, failure)
	})

	t.Run("max pages", func(t *testing.T) {
		t.Parallel()

		searcher := threePages()

		err := bitable.IteratePages(context.Background(), searcher, nil, &bitable.PaginationOptions{MaxPages: 1},
			func([]bitable.Record) error { return nil })
		require.ErrorIs(t, err, bitable.ErrPageLimitExceeded)
		assert.Len(t, searcher.calls, 1)
	})

	t.Run("token repeating the cursor", func(t *testing.T) {
		t.Parallel()

		searcher := &MockSearcher{pages: map[string]*bitable.SearchResult{
			"p1": {Items: records("r1"), HasMore: true, PageToken: "p1"},
		}}

		err := bitable.IteratePages(context.Background(), searcher, &bitable.SearchOptions{PageToken: "p1"}, nil,
			func([]bitable.Record) error { return nil })
		require.ErrorIs(t, err, bitable.ErrCursorStalled)
	})
}

func TestDefaultPaginationOptions(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 10000, bitable.DefaultPaginationOptions().MaxPages)
}

func TestRecordIterator(t *testing.T) {
	t.Parallel()
	t.Run("next and has next", func(t *testing.T) {
		t.Parallel()

		iterator := bitable.NewRecordIterator(context.Background(), threePages(), nil)

		var got []string

		for iterator.HasNext() {
			record, err := iterator.Next()
			require.NoError(t, err)

			got = append(got, record.RecordID)
		}

		assert.Equal(t, []string{"r1", "r2", "r3", "r4", "r5"}, got)
		require.NoError(t, iterator.Err())

		_, err := iterator.Next()
		require.ErrorIs(t, err, bitable.ErrNoMoreItems)
	})

	t.Run("all", func(t *testing.T) {
		t.Parallel()

		all, err := bitable.NewRecordIterator(context.Background(), threePages(), nil).All()
		require.NoError(t, err)
		assert.Len(t, all, 5)
	})

	t.Run("empty first page", func(t *testing.T) {
		t.Parallel()

		iterator := bitable.NewRecordIterator(context.Background(), &MockSearcher{}, nil)
		assert.False(t, iterator.HasNext())
		require.NoError(t, iterator.Err())
	})

	t.Run("page limit", func(t *testing.T) {
		t.Parallel()

		all, err := bitable.NewRecordIterator(context.Background(), threePages(), nil).WithMaxPages(2).All()
		require.ErrorIs(t, err, bitable.ErrPageLimitExceeded)
		assert.Equal(t, []string{"r1", "r2", "r3", "r4"}, ids(all))
	})

	t.Run("for each stops on error", func(t *testing.T) {
		t.Parallel()

		var seen int

		err := bitable.NewRecordIterator(context.Background(), threePages(), nil).ForEach(func(record bitable.Record) error {
			seen++
			if record.RecordID == "r3" {
				return assert.AnError
			}

			return nil
		})
		require.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, 3, seen)
	})
}

func TestStreamPages(t *testing.T) {
	t.Parallel()

	var (
		batches int
		got     []bitable.Record
	)

	for page := range bitable.StreamPages(context.Background(), threePages(), nil, nil) {
		require.NoError(t, page.Err)

		batches++
		got = append(got, page.Items...)
	}

	assert.Equal(t, 3, batches)
	assert.Len(t, got, 5)
}
