package constants

import "time"

// Endpoints.
const (
	// DefaultBaseURL is the Feishu open platform API root.
	DefaultBaseURL = "https://open.feishu.cn/open-apis"

	// TenantTokenPath issues tenant access tokens for self-built apps.
	TenantTokenPath = "/auth/v3/tenant_access_token/internal"

	// BitableAppsPath is the prefix of every bitable resource.
	BitableAppsPath = "/bitable/v1/apps"
)

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for token requests.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry limits. Retries are off unless RetryMax is configured.
const (
	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second
)

// Paging.
const (
	// DefaultPageSize is what the search endpoint uses when page_size is omitted.
	DefaultPageSize = 20

	// MaxPageSize is the largest page_size the search endpoint accepts.
	MaxPageSize = 500

	// FieldsPageSize is requested when listing field descriptors.
	FieldsPageSize = 100

	// DefaultMaxPages bounds a single iteration.
	DefaultMaxPages = 10000
)

// Token handling.
const (
	// TokenExpiryBuffer treats a token as expired slightly before the server does.
	TokenExpiryBuffer = 30 * time.Second

	// MaskedTokenVisible is how many leading token characters the CLI prints.
	MaskedTokenVisible = 6
)

// Cache defaults.
const (
	// DefaultCacheSize is the default number of entries held by the memory cache.
	DefaultCacheSize = 256

	// DefaultCacheTTL is how long Meta and Fields results are cached.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultNATSBucket is the JetStream KV bucket used by the NATS cache.
	DefaultNATSBucket = "bitable_cache"
)

// Feishu envelope codes.
const (
	// CodeOK marks a successful envelope.
	CodeOK = 0

	// CodeTooManyRequests is returned when the app exceeds its request quota.
	CodeTooManyRequests = 99991400

	// CodeTenantTokenInvalid is returned for an invalid or expired tenant token.
	CodeTenantTokenInvalid = 99991663

	// CodeTokenMissing is returned when no Authorization header is sent.
	CodeTokenMissing = 99991661

	// CodeAppTokenNotFound means the app token does not resolve to a base.
	CodeAppTokenNotFound = 1254040

	// CodeTableNotFound means the table id does not exist in the base.
	CodeTableNotFound = 1254041

	// CodeRecordNotFound means the record id does not exist.
	CodeRecordNotFound = 1254043

	// CodeForbidden means the app lacks permission on the base.
	CodeForbidden = 91403
)

// Output formatting.
const (
	// JSONIndentSize is the indent used for JSON and YAML output.
	JSONIndentSize = 2
)

// Format constants.
const (
	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"

	// FormatTable for table output format.
	FormatTable = "table"
)

// CLI argument counts.
const (
	// KeyValueArgumentCount is the argument count of "config set KEY VALUE".
	KeyValueArgumentCount = 2
)

// Batch defaults.
const (
	// DefaultBatchConcurrency is how many batch operations run at once.
	DefaultBatchConcurrency = 5
)
