package app_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bdskit/ontomake/internal/app"
	"github.com/bdskit/ontomake/internal/hcl"
	"github.com/bdskit/ontomake/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startWatch runs App.Watch in the background and returns the error channel
// it will complete on.
func startWatch(t *testing.T, files map[string]string) (dir string, out *testutil.SafeBuffer, cancel context.CancelFunc, done chan error) {
	t.Helper()

	dir = testutil.WriteProject(t, files)
	out = &testutil.SafeBuffer{}
	cfg, err := app.NewConfig(app.Config{
		BuildfilePath: filepath.Join(dir, "ontomake.hcl"),
		LogLevel:      "debug",
		LogFormat:     "text",
		Workers:       2,
		Debounce:      30 * time.Millisecond,
	})
	require.NoError(t, err)

	testApp, err := app.New(out, cfg, hcl.NewLoader())
	require.NoError(t, err)

	ctx, cancelFn := context.WithCancel(context.Background())
	done = make(chan error, 1)
	go func() { done <- testApp.Watch(ctx, nil) }()

	t.Cleanup(cancelFn)
	return dir, out, cancelFn, done
}

func waitForFileContent(t *testing.T, path, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		return err == nil && strings.Contains(string(data), want)
	}, 10*time.Second, 20*time.Millisecond)
}

func TestWatch_RebuildsOnSourceChange(t *testing.T) {
	t.Parallel()

	// Arrange
	dir, _, cancel, done := startWatch(t, map[string]string{
		"ontomake.hcl": demoBuildfile,
		"src/a.txt":    "one\n",
	})
	final := filepath.Join(dir, "out", "final.txt")
	waitForFileContent(t, final, "one")

	// Act
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "a.txt"), []byte("two\n"), 0o644))

	// Assert
	waitForFileContent(t, final, "two")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestWatch_ReloadsChangedBuildfile(t *testing.T) {
	t.Parallel()

	// Arrange
	dir, out, cancel, done := startWatch(t, map[string]string{
		"ontomake.hcl": demoBuildfile,
		"src/a.txt":    "one\n",
	})
	defer cancel()
	final := filepath.Join(dir, "out", "final.txt")
	waitForFileContent(t, final, "one")

	// Act: change the final rule, then wait for the reload to land before
	// touching the source that forces a rebuild under the new rules.
	updated := strings.Replace(demoBuildfile,
		`command = "cat ${dep} > ${target}"`,
		`command = "cat ${dep} > ${target} && echo v2 >> ${target}"`, 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ontomake.hcl"), []byte(updated), 0o644))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Buildfile reloaded.")
	}, 10*time.Second, 20*time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "a.txt"), []byte("three\n"), 0o644))

	// Assert
	waitForFileContent(t, final, "v2")

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
