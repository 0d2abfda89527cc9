package bitable

import (
	"context"
	"fmt"

	"github.com/fivetwenty-io/bitable-client/internal/constants"
)

// PaginationOptions bound a page walk.
type PaginationOptions struct {
	// MaxPages stops the walk with ErrPageLimitExceeded once reached. Zero selects the default.
	MaxPages int
}

// DefaultPaginationOptions returns the default page bounds.
func DefaultPaginationOptions() *PaginationOptions {
	return &PaginationOptions{MaxPages: constants.DefaultMaxPages}
}

// IteratePages drives searcher page by page, starting at opts.PageToken.
//
// fn receives every non-empty page in server order. The walk ends when the
// server reports has_more=false or omits the page token. A failed search, an
// error from fn, a cancelled context, a repeated page token or exceeding
// MaxPages ends it with an error.
func IteratePages(ctx context.Context, searcher Searcher, opts *SearchOptions, pagination *PaginationOptions, fn func(records []Record) error) error {
	var base SearchOptions
	if opts != nil {
		base = *opts
	}

	maxPages := constants.DefaultMaxPages
	if pagination != nil && pagination.MaxPages > 0 {
		maxPages = pagination.MaxPages
	}

	seen := make(map[string]struct{})
	cursor := base.PageToken

	for page := 0; ; page++ {
		if page >= maxPages {
			return fmt.Errorf("%w: stopped after %d pages", ErrPageLimitExceeded, maxPages)
		}

		err := ctx.Err()
		if err != nil {
			return fmt.Errorf("iterating records: %w", err)
		}

		pageOpts := base
		pageOpts.PageToken = cursor

		result, err := searcher.Search(ctx, &pageOpts)
		if err != nil {
			return err
		}

		if len(result.Items) > 0 {
			err = fn(result.Items)
			if err != nil {
				return err
			}
		}

		if !result.HasMore || result.PageToken == "" {
			return nil
		}

		if _, dup := seen[result.PageToken]; dup || result.PageToken == cursor {
			return fmt.Errorf("%w: %s", ErrCursorStalled, result.PageToken)
		}

		seen[result.PageToken] = struct{}{}
		cursor = result.PageToken
	}
}

// RecordIterator pulls records one at a time, fetching pages on demand.
type RecordIterator struct {
	ctx      context.Context
	searcher Searcher
	opts     SearchOptions
	maxPages int

	buffer []Record
	pages  int
	done   bool
	seen   map[string]struct{}
	err    error
}

// NewRecordIterator creates an iterator over every record matched by opts.
func NewRecordIterator(ctx context.Context, searcher Searcher, opts *SearchOptions) *RecordIterator {
	iterator := &RecordIterator{
		ctx:      ctx,
		searcher: searcher,
		maxPages: constants.DefaultMaxPages,
		seen:     make(map[string]struct{}),
	}

	if opts != nil {
		iterator.opts = *opts
	}

	return iterator
}

// WithMaxPages overrides the page bound.
func (it *RecordIterator) WithMaxPages(maxPages int) *RecordIterator {
	if maxPages > 0 {
		it.maxPages = maxPages
	}

	return it
}

// HasNext reports whether Next would return a record. It may fetch a page.
func (it *RecordIterator) HasNext() bool {
	for len(it.buffer) == 0 && !it.done && it.err == nil {
		it.fetch()
	}

	return len(it.buffer) > 0
}

// Next returns the next record, or ErrNoMoreItems when the walk is over.
func (it *RecordIterator) Next() (*Record, error) {
	if !it.HasNext() {
		if it.err != nil {
			return nil, it.err
		}

		return nil, ErrNoMoreItems
	}

	record := it.buffer[0]
	it.buffer = it.buffer[1:]

	return &record, nil
}

// Err returns the error that ended the walk, if any.
func (it *RecordIterator) Err() error {
	return it.err
}

// All drains the iterator.
func (it *RecordIterator) All() ([]Record, error) {
	var records []Record

	for it.HasNext() {
		record, err := it.Next()
		if err != nil {
			return records, err
		}

		records = append(records, *record)
	}

	return records, it.err
}

// ForEach calls fn for every remaining record.
func (it *RecordIterator) ForEach(fn func(record Record) error) error {
	for it.HasNext() {
		record, err := it.Next()
		if err != nil {
			return err
		}

		err = fn(*record)
		if err != nil {
			return err
		}
	}

	return it.err
}

func (it *RecordIterator) fetch() {
	if it.pages >= it.maxPages {
		it.err = fmt.Errorf("%w: stopped after %d pages", ErrPageLimitExceeded, it.maxPages)

		return
	}

	result, err := it.searcher.Search(it.ctx, &it.opts)
	if err != nil {
		it.err = err

		return
	}

	it.pages++
	it.buffer = append(it.buffer, result.Items...)

	if !result.HasMore || result.PageToken == "" {
		it.done = true

		return
	}

	if _, dup := it.seen[result.PageToken]; dup || result.PageToken == it.opts.PageToken {
		it.err = fmt.Errorf("%w: %s", ErrCursorStalled, result.PageToken)

		return
	}

	it.seen[result.PageToken] = struct{}{}
	it.opts.PageToken = result.PageToken
}

// PageResult is one page delivered by StreamPages.
type PageResult struct {
	Items []Record
	Err   error
}

// StreamPages walks the pages in a goroutine and delivers them on a channel.
// The channel is closed when the walk ends; a final PageResult carries any error.
func StreamPages(ctx context.Context, searcher Searcher, opts *SearchOptions, pagination *PaginationOptions) <-chan PageResult {
	results := make(chan PageResult)

	go func() {
		defer close(results)

		err := IteratePages(ctx, searcher, opts, pagination, func(records []Record) error {
			select {
			case results <- PageResult{Items: records}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			select {
			case results <- PageResult{Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return results
}
