package constants

import "errors"

// Configuration errors.
var (
	ErrNoAppCredentials = errors.New("no app credentials configured, set FEISHU_APP_ID and FEISHU_APP_SECRET or run 'bitable config set'")
	ErrNoTableTarget    = errors.New("no table configured, set FEISHU_APP_TOKEN and FEISHU_TABLE_ID or pass --app-token and --table-id")
	ErrUnknownConfigKey = errors.New("unknown configuration key")
)

// Input errors.
var (
	ErrNoRecordInput      = errors.New("no record fields given, use --data or --file")
	ErrBothRecordInputs   = errors.New("--data and --file are mutually exclusive")
	ErrInvalidSortFlag    = errors.New("invalid --sort value, expected field or field:desc")
	ErrUnsupportedFileExt = errors.New("unsupported input file extension, expected .json, .yaml or .yml")
	ErrExportPathRequired = errors.New("--db is required")
)
