//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestConfig holds configuration for integration tests
type TestConfig struct {
	AppID      string
	AppSecret  string
	AppToken   string
	TableID    string
	BaseURL    string
	BinaryPath string
	Verbose    bool
}

// LoadTestConfig loads configuration from environment variables
func LoadTestConfig() *TestConfig {
	return &TestConfig{
		AppID:      os.Getenv("FEISHU_APP_ID"),
		AppSecret:  os.Getenv("FEISHU_APP_SECRET"),
		AppToken:   os.Getenv("FEISHU_APP_TOKEN"),
		TableID:    os.Getenv("FEISHU_TABLE_ID"),
		BaseURL:    os.Getenv("FEISHU_BASE_URL"),
		BinaryPath: getBinaryPath(),
		Verbose:    os.Getenv("BITABLE_VERBOSE") == "true",
	}
}

// getBinaryPath determines the path to the bitable binary
func getBinaryPath() string {
	if path := os.Getenv("BITABLE_BINARY_PATH"); path != "" {
		return path
	}

	// Try common locations
	candidates := []string{
		"../../bin/bitable",
		"../../bitable",
		"./bitable",
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "bitable" // Fallback to PATH
}

// SkipIfMissingConfig skips test if required config is missing
func (config *TestConfig) SkipIfMissingConfig(t *testing.T) {
	t.Helper()

	if config.AppID == "" || config.AppSecret == "" {
		t.Skip("FEISHU_APP_ID or FEISHU_APP_SECRET not set, skipping integration test")
	}

	if config.AppToken == "" || config.TableID == "" {
		t.Skip("FEISHU_APP_TOKEN or FEISHU_TABLE_ID not set, skipping integration test")
	}
}

// SkipIfMissingBinary skips test if the bitable binary cannot be found
func (config *TestConfig) SkipIfMissingBinary(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath(config.BinaryPath); err != nil {
		t.Skipf("bitable binary not found at %s, skipping integration test", config.BinaryPath)
	}
}

// CommandRunner provides utilities for running bitable commands
type CommandRunner struct {
	config     *TestConfig
	configFile string
	t          *testing.T
}

// NewCommandRunner creates a command runner with its own config file so the
// user's ~/.bitable is never touched.
func NewCommandRunner(config *TestConfig, t *testing.T) *CommandRunner {
	t.Helper()

	return &CommandRunner{
		config:     config,
		configFile: filepath.Join(t.TempDir(), "config.yml"),
		t:          t,
	}
}

// Run executes a bitable command and returns output
func (runner *CommandRunner) Run(args ...string) (stdout, stderr string, err error) {
	args = append([]string{"--config", runner.configFile}, args...)

	cmd := exec.Command(runner.config.BinaryPath, args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if runner.config.Verbose {
		runner.t.Logf("Running: %s %s", runner.config.BinaryPath, strings.Join(args, " "))
	}

	err = cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if runner.config.Verbose && err != nil {
		runner.t.Logf("Command failed: %v\nStdout: %s\nStderr: %s", err, stdout, stderr)
	}

	return stdout, stderr, err
}

// RunJSON executes a bitable command with -o json and decodes stdout into out
func (runner *CommandRunner) RunJSON(out interface{}, args ...string) error {
	stdout, stderr, err := runner.Run(append(args, "-o", "json")...)
	if err != nil {
		return fmt.Errorf("command failed: %w: %s", err, stderr)
	}

	return json.Unmarshal([]byte(stdout), out)
}

// GenerateTestName creates a unique test value
func GenerateTestName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// CleanupRecord attempts to delete a test record
func (runner *CommandRunner) CleanupRecord(recordID string) {
	if recordID == "" {
		return
	}

	stdout, stderr, err := runner.Run("records", "delete", recordID)
	if err != nil && runner.config.Verbose {
		runner.t.Logf("Cleanup warning for record %s: %s\nStderr: %s", recordID, stdout, stderr)
	}
}

// WriteFile writes content to a file in a temporary directory
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}

	return path
}
