//go:build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/bitable-client/pkg/bitable"
	"github.com/fivetwenty-io/bitable-client/pkg/feishu"
)

// The table under test needs a text field whose name is given by
// FEISHU_TEXT_FIELD (default "Name").
func textField() string {
	if name := os.Getenv("FEISHU_TEXT_FIELD"); name != "" {
		return name
	}

	return "Name"
}

// TestRecordWorkflow_CLI inserts, updates, searches and deletes one record
// through the bitable binary.
func TestRecordWorkflow_CLI(t *testing.T) {
	config := LoadTestConfig()
	config.SkipIfMissingConfig(t)
	config.SkipIfMissingBinary(t)

	runner := NewCommandRunner(config, t)
	field := textField()
	value := GenerateTestName("cli-record")

	var inserted bitable.Record
	require.NoError(t, runner.RunJSON(&inserted, "records", "insert", "--data", fmt.Sprintf(`{%q:%q}`, field, value)))
	require.NotEmpty(t, inserted.RecordID)

	defer runner.CleanupRecord(inserted.RecordID)

	assert.Equal(t, value, inserted.Fields[field])

	updatedValue := value + "-updated"

	var updated bitable.Record
	require.NoError(t, runner.RunJSON(&updated, "records", "update", inserted.RecordID, "--data", fmt.Sprintf(`{%q:%q}`, field, updatedValue)))
	assert.Equal(t, inserted.RecordID, updated.RecordID)

	filterFile := WriteFile(t, "filter.yaml", fmt.Sprintf("conjunction: and\nconditions:\n  - field_name: %s\n    operator: is\n    value: [%q]\n", field, updatedValue))

	var result bitable.SearchResult
	require.NoError(t, runner.RunJSON(&result, "records", "search", "--filter-file", filterFile, "--all"))
	require.Len(t, result.Items, 1)
	assert.Equal(t, inserted.RecordID, result.Items[0].RecordID)

	_, stderr, err := runner.Run("records", "delete", inserted.RecordID)
	require.NoError(t, err, stderr)
}

// TestRecordWorkflow_SDK exercises the same lifecycle through the Go client.
func TestRecordWorkflow_SDK(t *testing.T) {
	config := LoadTestConfig()
	config.SkipIfMissingConfig(t)

	ctx := context.Background()

	table, err := feishu.NewTable(ctx, &bitable.Config{
		AppID:     config.AppID,
		AppSecret: config.AppSecret,
		BaseURL:   config.BaseURL,
	}, bitable.TableCoordinates{AppToken: config.AppToken, TableID: config.TableID})
	require.NoError(t, err)

	meta, err := table.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, config.AppToken, meta.AppToken)

	fields, err := table.Fields(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, fields)

	field := textField()
	value := GenerateTestName("sdk-record")

	record, err := table.Insert(ctx, bitable.Fields{field: value})
	require.NoError(t, err)

	defer func() { _ = table.Delete(ctx, record.RecordID) }()

	var found []bitable.Record

	err = table.Iterate(ctx, &bitable.SearchOptions{
		Filter: bitable.NewFilter(bitable.ConjunctionAnd, bitable.Where(field, bitable.OperatorIs, value)),
	}, func(records []bitable.Record) error {
		found = append(found, records...)

		return nil
	})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, record.RecordID, found[0].RecordID)

	require.NoError(t, table.Delete(ctx, record.RecordID))

	err = table.Delete(ctx, record.RecordID)
	require.Error(t, err)

	apiErr := &bitable.APIError{}
	assert.True(t, errors.As(err, &apiErr))
}
