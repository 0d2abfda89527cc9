package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/fivetwenty-io/bitable-client/internal/constants"
	"github.com/fivetwenty-io/bitable-client/pkg/bitable"
)

// TableClient implements bitable.Table for one app token and table ID.
type TableClient struct {
	client   *Client
	appToken string
	tableID  string
}

func newTable(client *Client, coords bitable.TableCoordinates) *TableClient {
	return &TableClient{
		client:   client,
		appToken: coords.AppToken,
		tableID:  coords.TableID,
	}
}

// AppToken implements bitable.Table.AppToken.
func (t *TableClient) AppToken() string {
	return t.appToken
}

// TableID implements bitable.Table.TableID.
func (t *TableClient) TableID() string {
	return t.tableID
}

func (t *TableClient) appURL() string {
	return t.client.baseURL + constants.BitableAppsPath + "/" + url.PathEscape(t.appToken)
}

func (t *TableClient) tableURL() string {
	return t.appURL() + "/tables/" + url.PathEscape(t.tableID)
}

func (t *TableClient) recordsURL() string {
	return t.tableURL() + "/records"
}

func (t *TableClient) recordURL(recordID string) string {
	return t.recordsURL() + "/" + url.PathEscape(recordID)
}

func (t *TableClient) validate(requireTable bool) error {
	if t.appToken == "" {
		return bitable.ErrAppTokenRequired
	}

	if requireTable && t.tableID == "" {
		return bitable.ErrTableIDRequired
	}

	return nil
}

// call performs one request and decodes data into out. A non-zero envelope
// code becomes an *bitable.APIError. Failures are logged and wrapped with op.
func (t *TableClient) call(ctx context.Context, op, method, target string, body, out interface{}) error {
	envelope, err := t.client.Query(ctx, target, method, body)
	if err == nil {
		err = envelope.Err()
	}

	if err == nil && out != nil {
		err = envelope.Decode(out)
	}

	if err != nil {
		return t.fail(op, err)
	}

	return nil
}

func (t *TableClient) fail(op string, err error) error {
	t.client.logError("Bitable request failed", map[string]interface{}{
		"operation": op,
		"app_token": t.appToken,
		"table_id":  t.tableID,
		"error":     err.Error(),
	})

	return fmt.Errorf("%s: %w", op, err)
}

type recordBody struct {
	Fields bitable.Fields `json:"fields"`
}

type recordData struct {
	Record *bitable.Record `json:"record"`
}

func fieldsOrEmpty(fields bitable.Fields) bitable.Fields {
	if fields == nil {
		return bitable.Fields{}
	}

	return fields
}

// Insert implements bitable.Table.Insert. Each call carries a fresh client_token
// so a retried request does not create a second record.
func (t *TableClient) Insert(ctx context.Context, fields bitable.Fields) (*bitable.Record, error) {
	err := t.validate(true)
	if err != nil {
		return nil, err
	}

	target := t.recordsURL() + "?" + url.Values{"client_token": {uuid.NewString()}}.Encode()

	var data recordData

	err = t.call(ctx, "inserting record", http.MethodPost, target, recordBody{Fields: fieldsOrEmpty(fields)}, &data)
	if err != nil {
		return nil, err
	}

	if data.Record == nil {
		return nil, fmt.Errorf("inserting record: %w", bitable.ErrMissingData)
	}

	return data.Record, nil
}

// Update implements bitable.Table.Update.
func (t *TableClient) Update(ctx context.Context, recordID string, fields bitable.Fields) (*bitable.Record, error) {
	err := t.validate(true)
	if err != nil {
		return nil, err
	}

	if recordID == "" {
		return nil, bitable.ErrRecordIDRequired
	}

	var data recordData

	err = t.call(ctx, "updating record", http.MethodPut, t.recordURL(recordID), recordBody{Fields: fieldsOrEmpty(fields)}, &data)
	if err != nil {
		return nil, err
	}

	if data.Record == nil {
		return nil, fmt.Errorf("updating record: %w", bitable.ErrMissingData)
	}

	return data.Record, nil
}

// Delete implements bitable.Table.Delete.
func (t *TableClient) Delete(ctx context.Context, recordID string) error {
	err := t.validate(true)
	if err != nil {
		return err
	}

	if recordID == "" {
		return bitable.ErrRecordIDRequired
	}

	return t.call(ctx, "deleting record", http.MethodDelete, t.recordURL(recordID), nil, nil)
}

// Meta implements bitable.Table.Meta.
func (t *TableClient) Meta(ctx context.Context) (*bitable.TableMeta, error) {
	err := t.validate(false)
	if err != nil {
		return nil, err
	}

	cacheKey := "meta:" + t.appToken

	var meta bitable.TableMeta
	if t.cacheGet(ctx, cacheKey, &meta) {
		return &meta, nil
	}

	var data struct {
		App *bitable.TableMeta `json:"app"`
	}

	err = t.call(ctx, "getting table meta", http.MethodGet, t.appURL(), nil, &data)
	if err != nil {
		return nil, err
	}

	if data.App == nil {
		return nil, fmt.Errorf("getting table meta: %w", bitable.ErrMissingData)
	}

	t.cacheSet(ctx, cacheKey, data.App)

	return data.App, nil
}

type fieldsPage struct {
	Items     []bitable.FieldDescriptor `json:"items"`
	PageToken string                    `json:"page_token"`
	HasMore   bool                      `json:"has_more"`
	Total     int                       `json:"total"`
}

// Fields implements bitable.Table.Fields. All pages of the field listing are fetched.
func (t *TableClient) Fields(ctx context.Context) ([]bitable.FieldDescriptor, error) {
	err := t.validate(true)
	if err != nil {
		return nil, err
	}

	cacheKey := "fields:" + t.appToken + ":" + t.tableID

	var cached []bitable.FieldDescriptor
	if t.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	fields := []bitable.FieldDescriptor{}
	seen := make(map[string]struct{})
	pageToken := ""

	for page := 0; ; page++ {
		if page >= t.maxPages() {
			return nil, fmt.Errorf("listing fields: %w", bitable.ErrPageLimitExceeded)
		}

		query := url.Values{"page_size": {strconv.Itoa(constants.FieldsPageSize)}}
		if pageToken != "" {
			query.Set("page_token", pageToken)
		}

		var data fieldsPage

		err = t.call(ctx, "listing fields", http.MethodGet, t.tableURL()+"/fields?"+query.Encode(), nil, &data)
		if err != nil {
			return nil, err
		}

		fields = append(fields, data.Items...)

		if !data.HasMore || data.PageToken == "" {
			break
		}

		if _, dup := seen[data.PageToken]; dup {
			return nil, fmt.Errorf("listing fields: %w: %s", bitable.ErrCursorStalled, data.PageToken)
		}

		seen[data.PageToken] = struct{}{}
		pageToken = data.PageToken
	}

	t.cacheSet(ctx, cacheKey, fields)

	return fields, nil
}

// Search implements bitable.Table.Search.
func (t *TableClient) Search(ctx context.Context, opts *bitable.SearchOptions) (*bitable.SearchResult, error) {
	err := t.validate(true)
	if err != nil {
		return nil, err
	}

	if opts != nil {
		err = opts.Validate(constants.MaxPageSize)
		if err != nil {
			return nil, err
		}
	}

	var result bitable.SearchResult

	envelope, err := t.client.Query(ctx, t.recordsURL()+"/search", http.MethodPost, opts.Body())
	if err == nil {
		err = envelope.Err()
	}

	// A search without matches may come back with no data at all.
	if err == nil {
		err = envelope.Decode(&result)
		if errors.Is(err, bitable.ErrMissingData) {
			err = nil
		}
	}

	if err != nil {
		return nil, t.fail("searching records", err)
	}

	if result.Items == nil {
		result.Items = []bitable.Record{}
	}

	return &result, nil
}

// Iterate implements bitable.Table.Iterate.
func (t *TableClient) Iterate(ctx context.Context, opts *bitable.SearchOptions, fn func(records []bitable.Record) error) error {
	return bitable.IteratePages(ctx, t, opts, &bitable.PaginationOptions{MaxPages: t.maxPages()}, fn)
}

func (t *TableClient) maxPages() int {
	if t.client.maxPages > 0 {
		return t.client.maxPages
	}

	return constants.DefaultMaxPages
}

func (t *TableClient) cacheGet(ctx context.Context, key string, out interface{}) bool {
	if t.client.cache == nil {
		return false
	}

	entry, err := t.client.cache.Get(ctx, key)
	if err != nil {
		return false
	}

	if json.Unmarshal(entry.Data, out) != nil {
		return false
	}

	t.client.logDebug("Cache hit", map[string]interface{}{"key": key})

	return true
}

func (t *TableClient) cacheSet(ctx context.Context, key string, value interface{}) {
	if t.client.cache == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		return
	}

	err = t.client.cache.Set(ctx, key, &bitable.CacheEntry{Data: data, ExpiresAt: time.Now().Add(t.client.cacheTTL)})
	if err != nil && t.client.logger != nil {
		t.client.logger.Warn("Failed to cache response", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}
