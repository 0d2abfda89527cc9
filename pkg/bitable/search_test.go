package bitable_test

import (
	"encoding/json"
	"testing"

	"github.com/fivetwenty-io/bitable-client/pkg/bitable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchOptions_Body(t *testing.T) {
	t.Parallel()
	t.Run("nil options", func(t *testing.T) {
		t.Parallel()

		var opts *bitable.SearchOptions

		assert.Empty(t, opts.Body())
	})

	t.Run("zero options", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, (&bitable.SearchOptions{}).Body())
	})

	t.Run("populated options", func(t *testing.T) {
		t.Parallel()

		opts := &bitable.SearchOptions{
			Filter:          bitable.NewFilter(bitable.ConjunctionOr, bitable.Where("Status", bitable.OperatorIs, "Open")),
			Sort:            []bitable.Sort{{FieldName: "Created", Desc: true}},
			PageToken:       "p2",
			PageSize:        100,
			ViewID:          "vew1",
			FieldNames:      []string{"Status"},
			AutomaticFields: true,
		}

		payload, err := json.Marshal(opts.Body())
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"filter": {"conjunction": "or", "conditions": [{"field_name": "Status", "operator": "is", "value": ["Open"]}]},
			"sort": [{"field_name": "Created", "desc": true}],
			"page_token": "p2",
			"page_size": 100,
			"view_id": "vew1",
			"field_names": ["Status"],
			"automatic_fields": true
		}`, string(payload))
	})
}

func TestCondition_MarshalJSON(t *testing.T) {
	t.Parallel()

	payload, err := json.Marshal(bitable.Where("Notes", bitable.OperatorIsNotEmpty))
	require.NoError(t, err)
	assert.JSONEq(t, `{"field_name":"Notes","operator":"isNotEmpty","value":[]}`, string(payload))
}

func TestSearchOptions_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    *bitable.SearchOptions
		wantErr error
	}{
		{name: "zero", opts: &bitable.SearchOptions{}},
		{name: "max page size", opts: &bitable.SearchOptions{PageSize: 500}},
		{name: "page size too large", opts: &bitable.SearchOptions{PageSize: 501}, wantErr: bitable.ErrInvalidPageSize},
		{name: "negative page size", opts: &bitable.SearchOptions{PageSize: -1}, wantErr: bitable.ErrInvalidPageSize},
		{
			name:    "bad conjunction",
			opts:    &bitable.SearchOptions{Filter: bitable.NewFilter("xor")},
			wantErr: bitable.ErrInvalidFilter,
		},
		{
			name:    "missing field name",
			opts:    &bitable.SearchOptions{Filter: bitable.NewFilter(bitable.ConjunctionAnd, bitable.Where("", bitable.OperatorIs, 1))},
			wantErr: bitable.ErrInvalidFilter,
		},
		{
			name:    "unknown operator",
			opts:    &bitable.SearchOptions{Filter: bitable.NewFilter(bitable.ConjunctionAnd, bitable.Where("A", "equals", 1))},
			wantErr: bitable.ErrInvalidFilter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.opts.Validate(500)
			if tt.wantErr == nil {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
