package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bdskit/ontomake/internal/app"
	"github.com/bdskit/ontomake/internal/hcl"
	"github.com/bdskit/ontomake/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demoBuildfile = `
project "demo" {
  default = ["out/final.txt"]
}

rule "copy" {
  doc     = "Copy one source into the build tree."
  target  = "out/%.txt"
  deps    = ["src/%.txt"]
  command = "cp ${dep} ${target}"
}

rule "final" {
  target  = "out/final.txt"
  deps    = ["out/a.txt"]
  command = "cat ${dep} > ${target}"
}
`

var demoFiles = map[string]string{
	"ontomake.hcl": demoBuildfile,
	"src/a.txt":    "payload\n",
}

// newTestApp loads a project tree without running anything.
func newTestApp(t *testing.T, files map[string]string) (*app.App, *testutil.SafeBuffer, string) {
	t.Helper()

	dir := testutil.WriteProject(t, files)
	logBuffer := &testutil.SafeBuffer{}
	cfg, err := app.NewConfig(app.Config{
		BuildfilePath: filepath.Join(dir, "ontomake.hcl"),
		LogLevel:      "debug",
		LogFormat:     "text",
		Workers:       2,
	})
	require.NoError(t, err)

	testApp, err := app.New(logBuffer, cfg, hcl.NewLoader())
	require.NoError(t, err)
	return testApp, logBuffer, dir
}

func TestNewConfig_RequiresBuildfilePath(t *testing.T) {
	t.Parallel()

	// Act
	_, err := app.NewConfig(app.Config{})

	// Assert
	require.ErrorContains(t, err, "BuildfilePath")
}

func TestNew_LoadsBuildfile(t *testing.T) {
	t.Parallel()

	// Act
	testApp, _, _ := newTestApp(t, demoFiles)

	// Assert
	require.Len(t, testApp.Model().Rules, 2)
	assert.Equal(t, []string{"out/final.txt"}, testApp.Model().Project.Default)
}

func TestNew_MissingBuildfileFails(t *testing.T) {
	t.Parallel()

	// Arrange
	dir := t.TempDir()
	cfg, err := app.NewConfig(app.Config{
		BuildfilePath: filepath.Join(dir, "ontomake.hcl"),
		Workers:       1,
	})
	require.NoError(t, err)

	// Act
	_, err = app.New(&testutil.SafeBuffer{}, cfg, hcl.NewLoader())

	// Assert
	require.ErrorContains(t, err, "failed to load buildfile")
}

func TestBuild_UsesDefaultTargets(t *testing.T) {
	t.Parallel()

	// Act
	result := testutil.RunBuild(t, demoFiles, testutil.Options{})

	// Assert
	require.NoError(t, result.Err)
	assert.Equal(t, "payload\n", testutil.ReadProjectFile(t, result, "out/final.txt"))
	testutil.AssertTargetBuilt(t, result, "out/a.txt")
	testutil.AssertTargetBuilt(t, result, "out/final.txt")
}

func TestBuild_NoTargetsNoDefaultFails(t *testing.T) {
	t.Parallel()

	// Arrange
	files := map[string]string{
		"ontomake.hcl": `
project "demo" {}

rule "copy" {
  target  = "out/%.txt"
  deps    = ["src/%.txt"]
  command = "cp ${dep} ${target}"
}
`,
		"src/a.txt": "payload\n",
	}

	// Act
	result := testutil.RunBuild(t, files, testutil.Options{})

	// Assert
	require.ErrorContains(t, result.Err, "no default targets")
}

func TestList_RendersRuleTable(t *testing.T) {
	t.Parallel()

	// Arrange
	testApp, out, _ := newTestApp(t, demoFiles)

	// Act
	err := testApp.List(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Contains(t, out.String(), "NAME")
	assert.Contains(t, out.String(), "copy")
	assert.Contains(t, out.String(), "out/%.txt")
	assert.Contains(t, out.String(), "Copy one source into the build tree.")
}

func TestList_ShowsToolsJobsAndPatterns(t *testing.T) {
	t.Parallel()

	// Arrange
	files := map[string]string{
		"ontomake.hcl": `
project "bdso" {
  jobs    = ["CCN202002013"]
  default = ["out.owl"]

  paths {
    dosdp_patterns = "patterns"
  }
}

tool "robot" {
  command = "robot"
}

rule "out" {
  target  = "out.owl"
  command = "true"
}
`,
		"patterns/brainCellRegion.yaml": "pattern_name: brainCellRegion\n",
	}
	testApp, out, _ := newTestApp(t, files)

	// Act
	err := testApp.List(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Contains(t, out.String(), "tools:    robot (robot)")
	assert.Contains(t, out.String(), "jobs:     CCN202002013")
	assert.Contains(t, out.String(), "patterns: brainCellRegion")
}

func TestGraph_RendersTreeWithStaleMarkers(t *testing.T) {
	t.Parallel()

	// Arrange: nothing is built yet, so every target is stale.
	testApp, out, _ := newTestApp(t, demoFiles)

	// Act
	err := testApp.Graph(context.Background(), nil)

	// Assert
	require.NoError(t, err)
	assert.Contains(t, out.String(), "out/final.txt [final, stale]")
	assert.Contains(t, out.String(), "└── out/a.txt [copy, stale]")
	assert.Contains(t, out.String(), "    └── src/a.txt (source)")
}

func TestGraph_FreshTreeHasNoStaleMarkers(t *testing.T) {
	t.Parallel()

	// Arrange
	result := testutil.RunBuild(t, demoFiles, testutil.Options{})
	require.NoError(t, result.Err)

	out := &testutil.SafeBuffer{}
	cfg, err := app.NewConfig(app.Config{
		BuildfilePath: filepath.Join(result.Dir, "ontomake.hcl"),
		LogLevel:      "info",
		Workers:       1,
	})
	require.NoError(t, err)
	testApp, err := app.New(out, cfg, hcl.NewLoader())
	require.NoError(t, err)

	// Act
	err = testApp.Graph(context.Background(), nil)

	// Assert
	require.NoError(t, err)
	assert.Contains(t, out.String(), "out/final.txt [final]\n")
	assert.NotContains(t, out.String(), "stale")
}

func TestGraph_MarksMissingSources(t *testing.T) {
	t.Parallel()

	// Arrange
	files := map[string]string{"ontomake.hcl": demoBuildfile}
	testApp, out, _ := newTestApp(t, files)

	// Act
	err := testApp.Graph(context.Background(), nil)

	// Assert
	require.NoError(t, err)
	assert.Contains(t, out.String(), "src/a.txt (source, missing)")
}

func TestClean_RemovesDerivedFilesOnly(t *testing.T) {
	t.Parallel()

	// Arrange
	result := testutil.RunBuild(t, demoFiles, testutil.Options{})
	require.NoError(t, result.Err)

	// Act
	err := result.App.Clean(context.Background())

	// Assert
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(result.Dir, "out", "a.txt"))
	assert.NoFileExists(t, filepath.Join(result.Dir, "out", "final.txt"))
	assert.FileExists(t, filepath.Join(result.Dir, "src", "a.txt"))
	assert.FileExists(t, filepath.Join(result.Dir, "ontomake.hcl"))
}

func TestClean_DryRunLeavesFiles(t *testing.T) {
	t.Parallel()

	// Arrange
	dir := testutil.WriteProject(t, demoFiles)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "out"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "out", "a.txt"), []byte("x"), 0o644))

	logBuffer := &testutil.SafeBuffer{}
	cfg, err := app.NewConfig(app.Config{
		BuildfilePath: filepath.Join(dir, "ontomake.hcl"),
		LogLevel:      "info",
		Workers:       1,
		DryRun:        true,
	})
	require.NoError(t, err)
	testApp, err := app.New(logBuffer, cfg, hcl.NewLoader())
	require.NoError(t, err)

	// Act
	err = testApp.Clean(context.Background())

	// Assert
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "out", "a.txt"))
	assert.Contains(t, logBuffer.String(), "Would remove derived file.")
}
