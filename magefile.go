//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var Default = Build

const buildDir = "build"

// Build compiles the skytest CLI
func Build() error {
	fmt.Println("Building skytest...")
	return sh.Run("go", "build", "-o", filepath.Join(buildDir, "skytest"), "./cmd/skytest")
}

// Runner cross-compiles the in-function runner as a bootstrap binary, the
// same way the harness does at run time
func Runner() error {
	env := map[string]string{
		"GOOS":        "linux",
		"GOARCH":      "amd64",
		"CGO_ENABLED": "0",
	}
	fmt.Println("Building runner bootstrap...")
	return sh.RunWith(env, "go", "build",
		"-ldflags", "-s -w",
		"-trimpath",
		"-o", filepath.Join(buildDir, "bootstrap"),
		"./lambda/runner",
	)
}

// Test runs the unit tests
func Test() error {
	return sh.Run("go", "test", "./...")
}

// Integration runs the env-gated integration tests against real AWS
func Integration() error {
	mg.Deps(Build)
	env := map[string]string{"INTEGRATION_TEST": "true"}
	return sh.RunWith(env, "go", "test", "-count=1", "./test/integration/...")
}

// Clean removes build artifacts
func Clean() error {
	fmt.Println("Cleaning build artifacts...")
	return os.RemoveAll(buildDir)
}
