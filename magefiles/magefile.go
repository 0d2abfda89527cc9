//go:build mage

// Package main provides build targets for the bitable client using Mage.
//
// Usage:
//
//	mage build            Compile the bitable CLI to bin/
//	mage test             Run unit tests
//	mage testIntegration  Run integration tests against a live tenant
//	mage lint             Run golangci-lint
//	mage clean            Remove build artifacts
//	mage install          Install the bitable CLI to GOPATH/bin
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName = "bitable"
	binaryDir  = "bin"
	cmdDir     = "./cmd/bitable"
)

var errMissingCredentials = errors.New("FEISHU_APP_ID, FEISHU_APP_SECRET, FEISHU_APP_TOKEN and FEISHU_TABLE_ID must be set")

// Build compiles the bitable binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}

	return sh.RunV("go", "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Test runs unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// TestIntegration runs the tagged integration tests. They create and delete
// records in the table named by FEISHU_APP_TOKEN and FEISHU_TABLE_ID.
func TestIntegration() error {
	mg.Deps(Build)

	for _, name := range []string{"FEISHU_APP_ID", "FEISHU_APP_SECRET", "FEISHU_APP_TOKEN", "FEISHU_TABLE_ID"} {
		if os.Getenv(name) == "" {
			return errMissingCredentials
		}
	}

	return sh.RunV("go", "test", "-tags", "integration", "-count=1", "./test/integration/...")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	fmt.Println("Removing", binaryDir)

	return os.RemoveAll(binaryDir)
}

// Install installs the bitable binary to GOPATH/bin.
func Install() error {
	return sh.RunV("go", "install", cmdDir)
}
