package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/bitable-client/internal/constants"
)

// Config represents the CLI configuration.
type Config struct {
	AppID     string `json:"app_id,omitempty"     yaml:"app_id,omitempty"`
	AppSecret string `json:"app_secret,omitempty" yaml:"app_secret,omitempty"`
	AppToken  string `json:"app_token,omitempty"  yaml:"app_token,omitempty"`
	TableID   string `json:"table_id,omitempty"   yaml:"table_id,omitempty"`
	BaseURL   string `json:"base_url,omitempty"   yaml:"base_url,omitempty"`
	Output    string `json:"output,omitempty"     yaml:"output,omitempty"`

	// Last tenant token acquired, reused until it expires.
	TenantToken          string     `json:"tenant_token,omitempty"            yaml:"tenant_token,omitempty"`
	TenantTokenAppID     string     `json:"tenant_token_app_id,omitempty"     yaml:"tenant_token_app_id,omitempty"`
	TenantTokenExpiresAt *time.Time `json:"tenant_token_expires_at,omitempty" yaml:"tenant_token_expires_at,omitempty"`
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Manage bitable CLI configuration including app credentials and the default table",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigSetSecretCommand())
	cmd.AddCommand(newConfigClearTokenCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the current CLI configuration. Secrets and tokens are masked.",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := maskConfig(loadConfig())
			writer := cmd.OutOrStdout()

			output := viper.GetString("output")
			switch output {
			case constants.FormatJSON:
				encoder := json.NewEncoder(writer)
				encoder.SetIndent("", "  ")

				return encoder.Encode(config)
			case constants.FormatYAML:
				encoder := yaml.NewEncoder(writer)

				return encoder.Encode(config)
			default:
				return displayConfigTable(writer, config)
			}
		},
	}
}

func displayConfigTable(writer io.Writer, config *Config) error {
	table := tablewriter.NewWriter(writer)
	table.Header("Property", "Value")

	_ = table.Append("App ID", config.AppID)
	_ = table.Append("App Secret", config.AppSecret)
	_ = table.Append("App Token", config.AppToken)
	_ = table.Append("Table ID", config.TableID)
	_ = table.Append("Base URL", config.BaseURL)
	_ = table.Append("Output", config.Output)

	if config.TenantToken != "" {
		_ = table.Append("Tenant Token", config.TenantToken)

		if config.TenantTokenExpiresAt != nil {
			_ = table.Append("Token Expires", config.TenantTokenExpiresAt.Format(time.RFC3339))
		}
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long: `Set a configuration value.

Keys: app_id, app_secret, app_token, table_id, base_url, output`,
		Args: cobra.ExactArgs(constants.KeyValueArgumentCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfigFile()
			if err != nil {
				return err
			}

			err = setConfigValue(config, args[0], args[1])
			if err != nil {
				return err
			}

			err = saveConfigStruct(config)
			if err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			viper.Set(args[0], args[1])

			value := args[1]
			if args[0] == "app_secret" {
				value = maskSecret(value)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], value)

			return nil
		},
	}
}

func newConfigSetSecretCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-secret",
		Short: "Prompt for the app secret",
		Long:  "Read the app secret from the terminal without echoing it and save it to the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _ = os.Stdout.WriteString("App Secret: ")

			secretBytes, err := term.ReadPassword(syscall.Stdin)
			if err != nil {
				return fmt.Errorf("failed to read app secret: %w", err)
			}

			_, _ = os.Stdout.WriteString("\n")

			config, err := loadConfigFile()
			if err != nil {
				return err
			}

			secret := strings.TrimSpace(string(secretBytes))

			err = setConfigValue(config, "app_secret", secret)
			if err != nil {
				return err
			}

			err = saveConfigStruct(config)
			if err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			viper.Set("app_secret", secret)

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "App secret saved")

			return nil
		},
	}
}

func newConfigClearTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-token",
		Short: "Forget the saved tenant token",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfigFile()
			if err != nil {
				return err
			}

			clearTenantToken(config)

			err = saveConfigStruct(config)
			if err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Tenant token cleared")

			return nil
		},
	}
}

// setConfigValue sets one user-facing key. Changing credentials or the API root
// invalidates any saved tenant token.
func setConfigValue(config *Config, key, value string) error {
	switch key {
	case "app_id":
		config.AppID = value
		clearTenantToken(config)
	case "app_secret":
		config.AppSecret = value
		clearTenantToken(config)
	case "app_token":
		config.AppToken = value
	case "table_id":
		config.TableID = value
	case "base_url":
		config.BaseURL = value
		clearTenantToken(config)
	case "output":
		config.Output = value
	default:
		return fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, key)
	}

	return nil
}

func clearTenantToken(config *Config) {
	config.TenantToken = ""
	config.TenantTokenAppID = ""
	config.TenantTokenExpiresAt = nil
}

func maskConfig(config *Config) *Config {
	masked := *config
	masked.AppSecret = maskSecret(config.AppSecret)
	masked.TenantToken = maskSecret(config.TenantToken)

	return &masked
}

// maskSecret keeps the first few characters of a secret.
func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}

	if len(secret) <= constants.MaskedTokenVisible {
		return strings.Repeat("*", len(secret))
	}

	return secret[:constants.MaskedTokenVisible] + "..."
}

// loadConfig loads configuration from viper. Flags and FEISHU_* variables
// override the file.
func loadConfig() *Config {
	config := &Config{
		AppID:            viper.GetString("app_id"),
		AppSecret:        viper.GetString("app_secret"),
		AppToken:         viper.GetString("app_token"),
		TableID:          viper.GetString("table_id"),
		BaseURL:          viper.GetString("base_url"),
		Output:           viper.GetString("output"),
		TenantToken:      viper.GetString("tenant_token"),
		TenantTokenAppID: viper.GetString("tenant_token_app_id"),
	}

	if expiresAt := viper.GetTime("tenant_token_expires_at"); !expiresAt.IsZero() {
		config.TenantTokenExpiresAt = &expiresAt
	}

	return config
}

// loadConfigFile reads the config file alone, without flag or FEISHU_*
// overrides. Anything written back to disk starts from here so values
// supplied through the environment never end up in the file.
func loadConfigFile() (*Config, error) {
	configFile, err := configFilePath()
	if err != nil {
		return nil, err
	}

	config := &Config{}

	data, err := os.ReadFile(configFile) //nolint:gosec // path comes from --config or the home directory
	if errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
	}

	return config, nil
}

func configFilePath() (string, error) {
	if configFile := viper.ConfigFileUsed(); configFile != "" {
		return configFile, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ".bitable", "config.yml"), nil
}

// saveConfigStruct writes the config file. Only the tenant token is pushed
// into viper; user keys keep whatever flag or environment override is active.
func saveConfigStruct(config *Config) error {
	configFile, err := configFilePath()
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(configFile), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	err = os.WriteFile(configFile, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	viper.Set("tenant_token", config.TenantToken)
	viper.Set("tenant_token_app_id", config.TenantTokenAppID)

	if config.TenantTokenExpiresAt != nil {
		viper.Set("tenant_token_expires_at", *config.TenantTokenExpiresAt)
	} else {
		viper.Set("tenant_token_expires_at", nil)
	}

	return nil
}
