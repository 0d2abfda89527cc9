package bitable

import (
	"context"
	"time"
)

// Client owns authentication and raw HTTP calls, and hands out table handles.
type Client interface {
	// Authenticate fetches a fresh tenant access token and stores it.
	Authenticate(ctx context.Context) error
	// Query performs one authenticated call against an absolute URL and returns
	// the envelope unmodified. Callers interpret the envelope code.
	Query(ctx context.Context, url, method string, body interface{}) (*Envelope, error)
	// Table binds a handle to one table. No I/O is performed.
	Table(coords TableCoordinates) Table
}

// Searcher runs one page of a record search.
type Searcher interface {
	Search(ctx context.Context, opts *SearchOptions) (*SearchResult, error)
}

// Table translates record operations on one table into client calls.
type Table interface {
	Searcher

	AppToken() string
	TableID() string

	Insert(ctx context.Context, fields Fields) (*Record, error)
	Update(ctx context.Context, recordID string, fields Fields) (*Record, error)
	Delete(ctx context.Context, recordID string) error
	Meta(ctx context.Context) (*TableMeta, error)
	Fields(ctx context.Context) ([]FieldDescriptor, error)
	// Iterate calls fn with every non-empty page of search results in server order.
	Iterate(ctx context.Context, opts *SearchOptions, fn func(records []Record) error) error
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Config represents client configuration for building a bitable.Client.
//
// # Authentication
//
// If TenantAccessToken is set it is used as a static Bearer token and never
// refreshed. Otherwise AppID and AppSecret are exchanged for a tenant access
// token on first use. The token is reused for the life of the client; set
// RefreshTokenOnExpiry to re-acquire it once the server-reported expiry passes.
//
// # Timeouts and retries
//
// Per-request deadlines come from the context passed to each call. Requests are
// not retried unless RetryMax is greater than zero, in which case 5xx (except
// 501), 429 and connection errors are retried with backoff between RetryWaitMin
// and RetryWaitMax.
type Config struct {
	// AppID and AppSecret identify the self-built Feishu app.
	AppID     string
	AppSecret string
	// TenantAccessToken: if set, used directly and AppID/AppSecret are ignored.
	TenantAccessToken string
	// BaseURL: API root, defaults to https://open.feishu.cn/open-apis.
	BaseURL string

	HTTPTimeout  time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// Debug logs every HTTP request and response when a Logger is provided.
	Debug  bool
	Logger Logger
	// UserAgent overrides the default User-Agent header.
	UserAgent string

	// MaxPages bounds a single Iterate call. Zero selects the default.
	MaxPages int
	// RefreshTokenOnExpiry re-acquires an expired tenant token lazily.
	RefreshTokenOnExpiry bool

	// Cache, when set, holds Meta and Fields results for CacheTTL.
	Cache    Cache
	CacheTTL time.Duration
}
