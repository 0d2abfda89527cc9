package bitable_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/fivetwenty-io/bitable-client/pkg/bitable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_Err(t *testing.T) {
	t.Parallel()

	assert.NoError(t, (&bitable.Envelope{Code: 0}).Err())

	err := (&bitable.Envelope{Code: 1254041, Msg: "TableIdNotFound"}).Err()
	require.Error(t, err)
	assert.True(t, bitable.IsNotFound(err))
}

func TestEnvelope_Decode(t *testing.T) {
	t.Parallel()

	var envelope bitable.Envelope

	require.NoError(t, json.Unmarshal([]byte(`{"code":0,"msg":"success","data":{"record":{"record_id":"rec1","fields":{"name":"A"},"created_time":1700000000000}}}`), &envelope))

	var data struct {
		Record bitable.Record `json:"record"`
	}

	require.NoError(t, envelope.Decode(&data))
	assert.Equal(t, "rec1", data.Record.RecordID)
	assert.Equal(t, "A", data.Record.Fields["name"])
	assert.Equal(t, time.UnixMilli(1700000000000), data.Record.CreatedAt())
	assert.True(t, data.Record.LastModifiedAt().IsZero())

	require.ErrorIs(t, (&bitable.Envelope{}).Decode(&data), bitable.ErrMissingData)
	require.ErrorIs(t, (&bitable.Envelope{Data: json.RawMessage("null")}).Decode(&data), bitable.ErrMissingData)

	decodeErr := &bitable.DecodeError{}
	require.ErrorAs(t, (&bitable.Envelope{Data: json.RawMessage(`"text"`)}).Decode(&data), &decodeErr)
}

func TestFieldType_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "text", bitable.FieldTypeText.String())
	assert.Equal(t, "auto_number", bitable.FieldTypeAutoNumber.String())
	assert.Equal(t, "type(99)", bitable.FieldType(99).String())
}

func TestFieldDescriptor_Unmarshal(t *testing.T) {
	t.Parallel()

	var field bitable.FieldDescriptor

	require.NoError(t, json.Unmarshal([]byte(`{"field_id":"fld1","field_name":"Status","type":3,"property":{"options":[{"name":"Open"}]},"ui_type":"SingleSelect"}`), &field))
	assert.Equal(t, bitable.FieldTypeSingleSelect, field.Type)
	assert.JSONEq(t, `{"options":[{"name":"Open"}]}`, string(field.Property))
	assert.False(t, field.IsPrimary)
}
