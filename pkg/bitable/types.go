package bitable

import (
	"encoding/json"
	"fmt"
	"time"
)

// Fields maps field names to arbitrary JSON values. The server owns the schema;
// nothing here is validated client-side.
type Fields map[string]interface{}

// Record is a single bitable row.
type Record struct {
	RecordID         string `json:"record_id,omitempty"          yaml:"record_id,omitempty"`
	Fields           Fields `json:"fields,omitempty"             yaml:"fields,omitempty"`
	CreatedTime      int64  `json:"created_time,omitempty"       yaml:"created_time,omitempty"`
	LastModifiedTime int64  `json:"last_modified_time,omitempty" yaml:"last_modified_time,omitempty"`
}

// CreatedAt converts the server's millisecond timestamp. Zero if unset.
func (r *Record) CreatedAt() time.Time {
	return millisToTime(r.CreatedTime)
}

// LastModifiedAt converts the server's millisecond timestamp. Zero if unset.
func (r *Record) LastModifiedAt() time.Time {
	return millisToTime(r.LastModifiedTime)
}

func millisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}

	return time.UnixMilli(ms)
}

// FieldType is the numeric type tag of a field.
type FieldType int

// Known field types.
const (
	FieldTypeText         FieldType = 1
	FieldTypeNumber       FieldType = 2
	FieldTypeSingleSelect FieldType = 3
	FieldTypeMultiSelect  FieldType = 4
	FieldTypeDateTime     FieldType = 5
	FieldTypeCheckbox     FieldType = 7
	FieldTypeUser         FieldType = 11
	FieldTypePhone        FieldType = 13
	FieldTypeURL          FieldType = 15
	FieldTypeAttachment   FieldType = 17
	FieldTypeLink         FieldType = 18
	FieldTypeLookup       FieldType = 19
	FieldTypeFormula      FieldType = 20
	FieldTypeDuplexLink   FieldType = 21
	FieldTypeLocation     FieldType = 22
	FieldTypeGroupChat    FieldType = 23
	FieldTypeCreatedTime  FieldType = 1001
	FieldTypeModifiedTime FieldType = 1002
	FieldTypeCreatedUser  FieldType = 1003
	FieldTypeModifiedUser FieldType = 1004
	FieldTypeAutoNumber   FieldType = 1005
)

var fieldTypeNames = map[FieldType]string{
	FieldTypeText:         "text",
	FieldTypeNumber:       "number",
	FieldTypeSingleSelect: "single_select",
	FieldTypeMultiSelect:  "multi_select",
	FieldTypeDateTime:     "datetime",
	FieldTypeCheckbox:     "checkbox",
	FieldTypeUser:         "user",
	FieldTypePhone:        "phone",
	FieldTypeURL:          "url",
	FieldTypeAttachment:   "attachment",
	FieldTypeLink:         "link",
	FieldTypeLookup:       "lookup",
	FieldTypeFormula:      "formula",
	FieldTypeDuplexLink:   "duplex_link",
	FieldTypeLocation:     "location",
	FieldTypeGroupChat:    "group_chat",
	FieldTypeCreatedTime:  "created_time",
	FieldTypeModifiedTime: "modified_time",
	FieldTypeCreatedUser:  "created_user",
	FieldTypeModifiedUser: "modified_user",
	FieldTypeAutoNumber:   "auto_number",
}

// String returns the type name, or "type(N)" for tags this package does not know.
func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("type(%d)", int(t))
}

// FieldDescriptor describes one column of a table.
type FieldDescriptor struct {
	FieldID   string          `json:"field_id"             yaml:"field_id"`
	FieldName string          `json:"field_name"           yaml:"field_name"`
	Type      FieldType       `json:"type"                 yaml:"type"`
	Property  json.RawMessage `json:"property,omitempty"   yaml:"-"`
	IsPrimary bool            `json:"is_primary,omitempty" yaml:"is_primary,omitempty"`
	UIType    string          `json:"ui_type,omitempty"    yaml:"ui_type,omitempty"`
}

// TableMeta is the metadata of the base (app) that contains the table.
type TableMeta struct {
	AppToken   string `json:"app_token"             yaml:"app_token"`
	Name       string `json:"name"                  yaml:"name"`
	Revision   int    `json:"revision"              yaml:"revision"`
	IsAdvanced bool   `json:"is_advanced,omitempty" yaml:"is_advanced,omitempty"`
	TimeZone   string `json:"time_zone,omitempty"   yaml:"time_zone,omitempty"`
}

// TableCoordinates identify one remote table.
type TableCoordinates struct {
	AppToken string
	TableID  string
}

// Envelope is the uniform wrapper returned by every Feishu endpoint.
type Envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Err returns an *APIError when the envelope reports failure.
func (e *Envelope) Err() error {
	if e.Code == 0 {
		return nil
	}

	return &APIError{Code: e.Code, Msg: e.Msg}
}

// Decode unmarshals Data into v. A missing data member yields ErrMissingData.
func (e *Envelope) Decode(v interface{}) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return ErrMissingData
	}

	err := json.Unmarshal(e.Data, v)
	if err != nil {
		return &DecodeError{Body: e.Data, Err: err}
	}

	return nil
}

// SearchResult is one page of search output.
type SearchResult struct {
	Items     []Record `json:"items"                yaml:"items"`
	PageToken string   `json:"page_token,omitempty" yaml:"page_token,omitempty"`
	HasMore   bool     `json:"has_more"             yaml:"has_more"`
	Total     int      `json:"total,omitempty"      yaml:"total,omitempty"`
}
