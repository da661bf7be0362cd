package builder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/helioslabs/skytest/pkg/logger"
	"github.com/magefile/mage/sh"
)

// lambdaBuildEnv cross-compiles for the provided.al2 runtime
var lambdaBuildEnv = map[string]string{
	"GOOS":        "linux",
	"GOARCH":      "amd64",
	"CGO_ENABLED": "0",
	"GO111MODULE": "on",
}

// BuildTestBinary compiles the test binary for the given package. The
// binary runs inside the function, so it is always a linux/amd64 build
// regardless of the host.
func BuildTestBinary(pkgPath, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	logger.Printf("Compiling test binary for %s", pkgPath)
	err := sh.RunWith(lambdaBuildEnv, "go", "test", "-c",
		"-ldflags", "-s -w",
		"-trimpath",
		"-o", outPath,
		pkgPath,
	)
	if err != nil {
		return fmt.Errorf("failed to compile test binary for %s: %w", pkgPath, err)
	}

	return nil
}

// BuildRunner compiles the in-function runner as "bootstrap", the entry
// point name the provided.al2 runtime requires
func BuildRunner(runnerPkg, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	logger.Printf("Compiling runner bootstrap from %s", runnerPkg)
	err := sh.RunWith(lambdaBuildEnv, "go", "build",
		"-ldflags", "-s -w",
		"-trimpath",
		"-o", outPath,
		runnerPkg,
	)
	if err != nil {
		return fmt.Errorf("failed to compile runner: %w", err)
	}

	return nil
}
