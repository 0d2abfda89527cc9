package bitable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fivetwenty-io/bitable-client/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrUnsupportedOperationType = errors.New("unsupported operation type")
	ErrTransactionFailed        = errors.New("transaction failed")
)

// BatchOperationType names what a batch operation does to a record.
type BatchOperationType string

// Batch operation types.
const (
	BatchInsert BatchOperationType = "insert"
	BatchUpdate BatchOperationType = "update"
	BatchDelete BatchOperationType = "delete"
)

// BatchOperation represents a single operation in a batch.
type BatchOperation struct {
	ID       string
	Type     BatchOperationType
	RecordID string // update and delete
	Fields   Fields // insert and update
	Callback func(result *BatchResult)
}

// BatchResult represents the result of a batch operation.
type BatchResult struct {
	ID       string
	Success  bool
	Record   *Record
	Error    error
	Duration time.Duration
}

// BatchExecutor runs record operations against one table with bounded concurrency.
type BatchExecutor struct {
	table       Table
	concurrency int
	timeout     time.Duration
}

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor(table Table, concurrency int) *BatchExecutor {
	if concurrency <= 0 {
		concurrency = constants.DefaultBatchConcurrency
	}

	return &BatchExecutor{
		table:       table,
		concurrency: concurrency,
		timeout:     constants.DefaultHTTPTimeout,
	}
}

// SetTimeout sets the per-operation timeout.
func (b *BatchExecutor) SetTimeout(timeout time.Duration) {
	b.timeout = timeout
}

// Execute runs every operation and returns one result per operation, in input
// order. A failed operation does not stop the others. The returned error is
// non-nil only when ctx ends before the batch completes.
func (b *BatchExecutor) Execute(ctx context.Context, operations []BatchOperation) ([]BatchResult, error) {
	results := make([]BatchResult, len(operations))

	var group errgroup.Group

	group.SetLimit(b.concurrency)

	for index, operation := range operations {
		group.Go(func() error {
			// Execute operation with timeout
			opCtx, cancel := context.WithTimeout(ctx, b.timeout)
			defer cancel()

			start := time.Now()
			result := b.executeOperation(opCtx, operation)
			result.Duration = time.Since(start)
			results[index] = *result

			// Call callback if provided
			if operation.Callback != nil {
				operation.Callback(result)
			}

			return nil
		})
	}

	_ = group.Wait()

	return results, ctx.Err()
}

// executeOperation executes a single operation.
func (b *BatchExecutor) executeOperation(ctx context.Context, operation BatchOperation) *BatchResult {
	result := &BatchResult{ID: operation.ID}

	switch operation.Type {
	case BatchInsert:
		result.Record, result.Error = b.table.Insert(ctx, operation.Fields)
	case BatchUpdate:
		result.Record, result.Error = b.table.Update(ctx, operation.RecordID, operation.Fields)
	case BatchDelete:
		result.Error = b.table.Delete(ctx, operation.RecordID)
		if result.Error == nil {
			result.Record = &Record{RecordID: operation.RecordID}
		}
	default:
		result.Error = fmt.Errorf("%w: %s", ErrUnsupportedOperationType, operation.Type)
	}

	result.Success = result.Error == nil

	return result
}

// BatchBuilder helps build batch operations.
type BatchBuilder struct {
	operations []BatchOperation
}

// NewBatchBuilder creates a new batch builder.
func NewBatchBuilder() *BatchBuilder {
	return &BatchBuilder{
		operations: make([]BatchOperation, 0),
	}
}

// AddInsert adds a record insert.
func (b *BatchBuilder) AddInsert(id string, fields Fields) *BatchBuilder {
	return b.AddOperation(BatchOperation{ID: id, Type: BatchInsert, Fields: fields})
}

// AddUpdate adds a record update.
func (b *BatchBuilder) AddUpdate(id, recordID string, fields Fields) *BatchBuilder {
	return b.AddOperation(BatchOperation{ID: id, Type: BatchUpdate, RecordID: recordID, Fields: fields})
}

// AddDelete adds a record delete.
func (b *BatchBuilder) AddDelete(id, recordID string) *BatchBuilder {
	return b.AddOperation(BatchOperation{ID: id, Type: BatchDelete, RecordID: recordID})
}

// AddOperation adds a custom operation.
func (b *BatchBuilder) AddOperation(operation BatchOperation) *BatchBuilder {
	b.operations = append(b.operations, operation)

	return b
}

// Build returns the built operations.
func (b *BatchBuilder) Build() []BatchOperation {
	return b.operations
}

// BatchTransaction runs a batch and, on any failure, deletes the records its
// successful inserts created. Updates and deletes are not undone.
type BatchTransaction struct {
	operations []BatchOperation
	executor   *BatchExecutor
	rollback   bool
}

// NewBatchTransaction creates a new batch transaction.
func NewBatchTransaction(executor *BatchExecutor) *BatchTransaction {
	return &BatchTransaction{
		executor:   executor,
		operations: make([]BatchOperation, 0),
		rollback:   true,
	}
}

// Add adds an operation to the transaction.
func (t *BatchTransaction) Add(operations ...BatchOperation) *BatchTransaction {
	t.operations = append(t.operations, operations...)

	return t
}

// SetRollback sets whether to rollback on failure.
func (t *BatchTransaction) SetRollback(rollback bool) *BatchTransaction {
	t.rollback = rollback

	return t
}

// Execute executes the transaction.
func (t *BatchTransaction) Execute(ctx context.Context) ([]BatchResult, error) {
	results, err := t.executor.Execute(ctx, t.operations)

	var failedOps []string

	for _, result := range results {
		if !result.Success {
			failedOps = append(failedOps, result.ID)
		}
	}

	if len(failedOps) == 0 {
		return results, err
	}

	if t.rollback {
		// Rollback runs even when ctx has ended.
		leftover := t.performRollback(context.WithoutCancel(ctx), results)
		if len(leftover) > 0 {
			return results, fmt.Errorf("%w, %d operations failed: %v; rollback failed for records %v",
				ErrTransactionFailed, len(failedOps), failedOps, leftover)
		}
	}

	return results, fmt.Errorf("%w, %d operations failed: %v", ErrTransactionFailed, len(failedOps), failedOps)
}

// performRollback deletes the records created by successful inserts and
// returns the IDs of those it could not delete.
func (t *BatchTransaction) performRollback(ctx context.Context, results []BatchResult) []string {
	builder := NewBatchBuilder()

	for index, result := range results {
		if !result.Success || t.operations[index].Type != BatchInsert || result.Record == nil {
			continue
		}

		builder.AddDelete("rollback_"+result.ID, result.Record.RecordID)
	}

	rollbackOps := builder.Build()
	if len(rollbackOps) == 0 {
		return nil
	}

	rollbackResults, _ := t.executor.Execute(ctx, rollbackOps)

	deleted := make(map[string]bool, len(rollbackResults))
	for _, result := range rollbackResults {
		if result.Success {
			deleted[result.ID] = true
		}
	}

	var leftover []string

	for _, op := range rollbackOps {
		if !deleted[op.ID] {
			leftover = append(leftover, op.RecordID)
		}
	}

	return leftover
}
