// Package testutil provides the shared harness for integration tests: a
// temporary project tree, a captured logger, and one full build run.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bdskit/ontomake/internal/app"
	"github.com/bdskit/ontomake/internal/hcl"
	"github.com/stretchr/testify/require"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	Dir       string
	LogOutput string
	Err       error
	App       *app.App
}

// Options tune a harness run.
type Options struct {
	Targets       []string
	Workers       int
	DryRun        bool
	AlwaysBuild   bool
	FlagOverrides map[string]bool
}

// WriteProject materializes files into a fresh temporary directory, keyed
// by slash-separated relative path, and returns the directory.
func WriteProject(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// ReadFile reads a file below dir by slash-separated relative path.
func ReadFile(t *testing.T, dir, rel string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

// RunBuild provides a standardized harness for running integration tests
// using a default background context. The project's buildfile must be in
// files under the name "ontomake.hcl".
func RunBuild(t *testing.T, files map[string]string, opts Options) *HarnessResult {
	t.Helper()
	return RunBuildWithContext(context.Background(), t, files, opts)
}

// RunBuildWithContext provides a standardized harness for running
// integration tests with a specific context provided by the caller.
func RunBuildWithContext(ctx context.Context, t *testing.T, files map[string]string, opts Options) *HarnessResult {
	t.Helper()
	return RunBuildInDir(ctx, t, WriteProject(t, files), opts)
}

// RunBuildInDir runs one build against an existing project directory, for
// scenarios that build repeatedly over the same tree.
func RunBuildInDir(ctx context.Context, t *testing.T, dir string, opts Options) *HarnessResult {
	t.Helper()

	logBuffer := &SafeBuffer{}

	workers := opts.Workers
	if workers == 0 {
		workers = 4
	}
	cfg, err := app.NewConfig(app.Config{
		BuildfilePath: filepath.Join(dir, "ontomake.hcl"),
		LogLevel:      "debug",
		LogFormat:     "text",
		Workers:       workers,
		DryRun:        opts.DryRun,
		AlwaysBuild:   opts.AlwaysBuild,
		FlagOverrides: opts.FlagOverrides,
	})
	require.NoError(t, err)

	loader := hcl.NewLoader()
	loader.FlagOverrides = cfg.FlagOverrides

	testApp, err := app.New(logBuffer, cfg, loader)
	if err != nil {
		return &HarnessResult{
			Dir:       dir,
			LogOutput: logBuffer.String(),
			Err:       err,
		}
	}

	result := &HarnessResult{Dir: dir, App: testApp}
	result.Err = testApp.Build(ctx, opts.Targets)
	result.LogOutput = logBuffer.String()

	if os.Getenv("ONTOMAKE_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), result.LogOutput)
	}
	return result
}
