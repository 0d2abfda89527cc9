package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/bitable-client/internal/auth"
	"github.com/fivetwenty-io/bitable-client/internal/client"
	"github.com/fivetwenty-io/bitable-client/internal/constants"
	"github.com/fivetwenty-io/bitable-client/pkg/bitable"
)

// stderrLogger writes client log lines to stderr when --verbose is set.
type stderrLogger struct {
	logger *log.Logger
}

func newStderrLogger() *stderrLogger {
	return &stderrLogger{logger: log.New(os.Stderr, "", log.LstdFlags)}
}

func (l *stderrLogger) write(level, msg string, fields map[string]interface{}) {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	var builder strings.Builder

	builder.WriteString(level)
	builder.WriteString(" ")
	builder.WriteString(msg)

	for _, key := range keys {
		_, _ = fmt.Fprintf(&builder, " %s=%v", key, fields[key])
	}

	l.logger.Print(builder.String())
}

func (l *stderrLogger) Debug(msg string, fields map[string]interface{}) { l.write("DEBUG", msg, fields) }
func (l *stderrLogger) Info(msg string, fields map[string]interface{})  { l.write("INFO", msg, fields) }
func (l *stderrLogger) Warn(msg string, fields map[string]interface{})  { l.write("WARN", msg, fields) }
func (l *stderrLogger) Error(msg string, fields map[string]interface{}) { l.write("ERROR", msg, fields) }

// buildClientConfig turns the CLI configuration into client settings.
func buildClientConfig(config *Config) (*bitable.Config, error) {
	clientConfig := &bitable.Config{
		AppID:             config.AppID,
		AppSecret:         config.AppSecret,
		TenantAccessToken: viper.GetString("tenant_access_token"),
		BaseURL:           strings.TrimSpace(config.BaseURL),
		HTTPTimeout:       constants.DefaultHTTPTimeout,
		// The saved token may outlive a single command.
		RefreshTokenOnExpiry: true,
	}

	if clientConfig.BaseURL == "" {
		clientConfig.BaseURL = constants.DefaultBaseURL
	}

	if clientConfig.TenantAccessToken == "" && (config.AppID == "" || config.AppSecret == "") {
		return nil, constants.ErrNoAppCredentials
	}

	if viper.GetBool("verbose") {
		clientConfig.Logger = newStderrLogger()
		clientConfig.Debug = true
	}

	return clientConfig, nil
}

// createClient builds a client whose tenant tokens are saved to the config file.
func createClient(ctx context.Context) (*client.Client, error) {
	config := loadConfig()

	clientConfig, err := buildClientConfig(config)
	if err != nil {
		return nil, err
	}

	if clientConfig.TenantAccessToken != "" {
		return createClientWithTokenManager(ctx, clientConfig, auth.NewStaticTokenManager(clientConfig.TenantAccessToken))
	}

	// Only reuse a saved token issued to the same app.
	var (
		savedToken  string
		savedExpiry time.Time
	)

	if config.TenantToken != "" && config.TenantTokenAppID == config.AppID {
		savedToken = config.TenantToken

		if config.TenantTokenExpiresAt != nil {
			savedExpiry = *config.TenantTokenExpiresAt
		}
	}

	tokenManager := auth.NewConfigTokenManager(client.NewTenantConfig(clientConfig), NewConfigPersister(), savedToken, savedExpiry)

	return createClientWithTokenManager(ctx, clientConfig, tokenManager)
}

func createClientWithTokenManager(ctx context.Context, config *bitable.Config, tokenManager auth.TokenManager) (*client.Client, error) {
	bitableClient, err := client.NewWithTokenManager(ctx, config, tokenManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create client with token manager: %w", err)
	}

	return bitableClient, nil
}

// createTable resolves the target table from flags, environment and config.
func createTable(ctx context.Context, requireTable bool) (bitable.Table, error) {
	appToken := viper.GetString("app_token")
	tableID := viper.GetString("table_id")

	if appToken == "" || (requireTable && tableID == "") {
		return nil, constants.ErrNoTableTarget
	}

	bitableClient, err := createClient(ctx)
	if err != nil {
		return nil, err
	}

	return bitableClient.Table(bitable.TableCoordinates{AppToken: appToken, TableID: tableID}), nil
}

// outputStructured writes value as JSON or YAML. It reports false when the
// table format is selected and the caller must render its own table.
func outputStructured(writer io.Writer, value interface{}) (bool, error) {
	switch viper.GetString("output") {
	case constants.FormatJSON:
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")

		return true, encoder.Encode(value)
	case constants.FormatYAML:
		encoder := yaml.NewEncoder(writer)
		encoder.SetIndent(constants.JSONIndentSize)

		return true, encoder.Encode(value)
	default:
		return false, nil
	}
}

func renderTable(table *tablewriter.Table) error {
	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// formatFieldValue renders a cell value compactly for table output.
func formatFieldValue(value interface{}) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64, bool, int, int64:
		return fmt.Sprint(typed)
	default:
		data, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}

		return string(data)
	}
}

// fieldNames returns the union of field names across records, sorted.
func fieldNames(records []bitable.Record) []string {
	set := make(map[string]struct{})

	for _, record := range records {
		for name := range record.Fields {
			set[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func renderRecords(writer io.Writer, records []bitable.Record) error {
	columns := fieldNames(records)

	header := make([]any, 0, len(columns)+1)
	header = append(header, "Record ID")

	for _, column := range columns {
		header = append(header, column)
	}

	table := tablewriter.NewWriter(writer)
	table.Header(header...)

	for _, record := range records {
		row := make([]any, 0, len(columns)+1)
		row = append(row, record.RecordID)

		for _, column := range columns {
			row = append(row, formatFieldValue(record.Fields[column]))
		}

		_ = table.Append(row...)
	}

	return renderTable(table)
}

// parseSort parses "field" or "field:desc" (also "field:asc").
func parseSort(values []string) ([]bitable.Sort, error) {
	sorts := make([]bitable.Sort, 0, len(values))

	for _, value := range values {
		name, direction, hasDirection := strings.Cut(value, ":")
		name = strings.TrimSpace(name)

		if name == "" {
			return nil, fmt.Errorf("%w: %q", constants.ErrInvalidSortFlag, value)
		}

		sortSpec := bitable.Sort{FieldName: name}

		if hasDirection {
			switch strings.ToLower(strings.TrimSpace(direction)) {
			case "desc":
				sortSpec.Desc = true
			case "asc":
			default:
				return nil, fmt.Errorf("%w: %q", constants.ErrInvalidSortFlag, value)
			}
		}

		sorts = append(sorts, sortSpec)
	}

	return sorts, nil
}

// readRecordFields reads record fields from an inline JSON object or a
// .json/.yaml/.yml file.
func readRecordFields(data, file string) (bitable.Fields, error) {
	switch {
	case data != "" && file != "":
		return nil, constants.ErrBothRecordInputs
	case data != "":
		var fields bitable.Fields

		err := json.Unmarshal([]byte(data), &fields)
		if err != nil {
			return nil, fmt.Errorf("failed to parse --data: %w", err)
		}

		return fields, nil
	case file != "":
		var fields bitable.Fields

		err := readStructuredFile(file, &fields)
		if err != nil {
			return nil, err
		}

		return fields, nil
	default:
		return nil, constants.ErrNoRecordInput
	}
}

// readStructuredFile decodes a JSON or YAML file into out.
func readStructuredFile(path string, out interface{}) error {
	// path is supplied by the user running the CLI
	// #nosec G304
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(content, out)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, out)
	default:
		return fmt.Errorf("%w: %s", constants.ErrUnsupportedFileExt, path)
	}

	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return nil
}
