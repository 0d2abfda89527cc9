package bitable_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fivetwenty-io/bitable-client/pkg/bitable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRejected = errors.New("rejected")

// fakeTable keeps records in memory. Inserts whose "Name" is "bad" fail.
type fakeTable struct {
	mutex    sync.Mutex
	records  map[string]bitable.Fields
	next     int
	inFlight int32
	peak     int32
	delay    time.Duration

	failDeletes bool
}

func newFakeTable() *fakeTable {
	return &fakeTable{records: make(map[string]bitable.Fields)}
}

func (f *fakeTable) enter() func() {
	current := atomic.AddInt32(&f.inFlight, 1)

	for {
		peak := atomic.LoadInt32(&f.peak)
		if current <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, current) {
			break
		}
	}

	time.Sleep(f.delay)

	return func() { atomic.AddInt32(&f.inFlight, -1) }
}

func (f *fakeTable) AppToken() string { return "app" }
func (f *fakeTable) TableID() string  { return "tbl" }

func (f *fakeTable) Insert(ctx context.Context, fields bitable.Fields) (*bitable.Record, error) {
	defer f.enter()()

	if fields["Name"] == "bad" {
		return nil, errRejected
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.next++
	id := fmt.Sprintf("rec%d", f.next)
	f.records[id] = fields

	return &bitable.Record{RecordID: id, Fields: fields}, nil
}

func (f *fakeTable) Update(ctx context.Context, recordID string, fields bitable.Fields) (*bitable.Record, error) {
	defer f.enter()()

	f.mutex.Lock()
	defer f.mutex.Unlock()

	existing, ok := f.records[recordID]
	if !ok {
		return nil, &bitable.APIError{Code: 1254043, Msg: "RecordIdNotFound"}
	}

	for key, value := range fields {
		existing[key] = value
	}

	return &bitable.Record{RecordID: recordID, Fields: existing}, nil
}

func (f *fakeTable) Delete(ctx context.Context, recordID string) error {
	defer f.enter()()

	f.mutex.Lock()
	defer f.mutex.Unlock()

	if _, ok := f.records[recordID]; !ok {
		return &bitable.APIError{Code: 1254043, Msg: "RecordIdNotFound"}
	}

	if f.failDeletes {
		return errRejected
	}

	delete(f.records, recordID)

	return nil
}

func (f *fakeTable) Meta(ctx context.Context) (*bitable.TableMeta, error) {
	return &bitable.TableMeta{AppToken: "app"}, nil
}

func (f *fakeTable) Fields(ctx context.Context) ([]bitable.FieldDescriptor, error) {
	return nil, nil
}

func (f *fakeTable) Search(ctx context.Context, opts *bitable.SearchOptions) (*bitable.SearchResult, error) {
	return &bitable.SearchResult{Items: []bitable.Record{}}, nil
}

func (f *fakeTable) Iterate(ctx context.Context, opts *bitable.SearchOptions, fn func(records []bitable.Record) error) error {
	return nil
}

func (f *fakeTable) count() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	return len(f.records)
}

func TestBatchExecutor_Execute(t *testing.T) {
	t.Parallel()

	t.Run("results keep input order", func(t *testing.T) {
		t.Parallel()

		table := newFakeTable()
		operations := bitable.NewBatchBuilder().
			AddInsert("a", bitable.Fields{"Name": "Alice"}).
			AddInsert("b", bitable.Fields{"Name": "bad"}).
			AddInsert("c", bitable.Fields{"Name": "Carol"}).
			Build()

		results, err := bitable.NewBatchExecutor(table, 2).Execute(context.Background(), operations)
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.Equal(t, "a", results[0].ID)
		assert.True(t, results[0].Success)
		assert.NotEmpty(t, results[0].Record.RecordID)

		assert.Equal(t, "b", results[1].ID)
		assert.False(t, results[1].Success)
		require.ErrorIs(t, results[1].Error, errRejected)

		assert.True(t, results[2].Success)
		assert.Equal(t, 2, table.count())
	})

	t.Run("concurrency is bounded", func(t *testing.T) {
		t.Parallel()

		table := newFakeTable()
		table.delay = 10 * time.Millisecond

		builder := bitable.NewBatchBuilder()
		for index := range 12 {
			builder.AddInsert(fmt.Sprint(index), bitable.Fields{"Name": fmt.Sprint(index)})
		}

		results, err := bitable.NewBatchExecutor(table, 3).Execute(context.Background(), builder.Build())
		require.NoError(t, err)
		assert.Len(t, results, 12)
		assert.LessOrEqual(t, atomic.LoadInt32(&table.peak), int32(3))
		assert.Equal(t, 12, table.count())
	})

	t.Run("update and delete", func(t *testing.T) {
		t.Parallel()

		table := newFakeTable()
		record, err := table.Insert(context.Background(), bitable.Fields{"Name": "Alice"})
		require.NoError(t, err)

		executor := bitable.NewBatchExecutor(table, 1)

		results, err := executor.Execute(context.Background(), bitable.NewBatchBuilder().
			AddUpdate("u", record.RecordID, bitable.Fields{"Age": 31}).
			AddUpdate("missing", "recNope", bitable.Fields{"Age": 1}).
			Build())
		require.NoError(t, err)
		assert.True(t, results[0].Success)
		assert.Equal(t, 31, results[0].Record.Fields["Age"])
		assert.True(t, bitable.IsNotFound(results[1].Error))

		results, err = executor.Execute(context.Background(), bitable.NewBatchBuilder().AddDelete("d", record.RecordID).Build())
		require.NoError(t, err)
		assert.True(t, results[0].Success)
		assert.Equal(t, record.RecordID, results[0].Record.RecordID)
		assert.Equal(t, 0, table.count())
	})

	t.Run("unsupported operation", func(t *testing.T) {
		t.Parallel()

		results, err := bitable.NewBatchExecutor(newFakeTable(), 1).Execute(context.Background(), []bitable.BatchOperation{
			{ID: "x", Type: "upsert"},
		})
		require.NoError(t, err)
		require.ErrorIs(t, results[0].Error, bitable.ErrUnsupportedOperationType)
	})

	t.Run("callbacks see every result", func(t *testing.T) {
		t.Parallel()

		var seen int32

		callback := func(result *bitable.BatchResult) { atomic.AddInt32(&seen, 1) }

		operations := []bitable.BatchOperation{
			{ID: "1", Type: bitable.BatchInsert, Fields: bitable.Fields{"Name": "a"}, Callback: callback},
			{ID: "2", Type: bitable.BatchInsert, Fields: bitable.Fields{"Name": "bad"}, Callback: callback},
		}

		_, err := bitable.NewBatchExecutor(newFakeTable(), 0).Execute(context.Background(), operations)
		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&seen))
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := bitable.NewBatchExecutor(newFakeTable(), 1).Execute(ctx, bitable.NewBatchBuilder().AddInsert("a", nil).Build())
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestBatchTransaction(t *testing.T) {
	t.Parallel()

	t.Run("rolls back inserts on failure", func(t *testing.T) {
		t.Parallel()

		table := newFakeTable()
		transaction := bitable.NewBatchTransaction(bitable.NewBatchExecutor(table, 2)).Add(
			bitable.NewBatchBuilder().
				AddInsert("a", bitable.Fields{"Name": "Alice"}).
				AddInsert("b", bitable.Fields{"Name": "bad"}).
				AddInsert("c", bitable.Fields{"Name": "Carol"}).
				Build()...,
		)

		results, err := transaction.Execute(context.Background())
		require.ErrorIs(t, err, bitable.ErrTransactionFailed)
		assert.Contains(t, err.Error(), "[b]")
		assert.Len(t, results, 3)
		assert.Equal(t, 0, table.count())
	})

	t.Run("reports records the rollback could not delete", func(t *testing.T) {
		t.Parallel()

		table := newFakeTable()
		table.failDeletes = true

		transaction := bitable.NewBatchTransaction(bitable.NewBatchExecutor(table, 1)).Add(
			bitable.NewBatchBuilder().
				AddInsert("a", bitable.Fields{"Name": "Alice"}).
				AddInsert("b", bitable.Fields{"Name": "bad"}).
				Build()...,
		)

		_, err := transaction.Execute(context.Background())
		require.ErrorIs(t, err, bitable.ErrTransactionFailed)
		assert.Contains(t, err.Error(), "rollback failed for records [rec1]")
		assert.Equal(t, 1, table.count())
	})

	t.Run("keeps inserts without rollback", func(t *testing.T) {
		t.Parallel()

		table := newFakeTable()
		transaction := bitable.NewBatchTransaction(bitable.NewBatchExecutor(table, 2)).
			SetRollback(false).
			Add(bitable.NewBatchBuilder().
				AddInsert("a", bitable.Fields{"Name": "Alice"}).
				AddInsert("b", bitable.Fields{"Name": "bad"}).
				Build()...)

		_, err := transaction.Execute(context.Background())
		require.ErrorIs(t, err, bitable.ErrTransactionFailed)
		assert.Equal(t, 1, table.count())
	})

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		table := newFakeTable()
		results, err := bitable.NewBatchTransaction(bitable.NewBatchExecutor(table, 2)).
			Add(bitable.BatchOperation{ID: "a", Type: bitable.BatchInsert, Fields: bitable.Fields{"Name": "Alice"}}).
			Execute(context.Background())
		require.NoError(t, err)
		assert.True(t, results[0].Success)
		assert.Equal(t, 1, table.count())
	})
}
