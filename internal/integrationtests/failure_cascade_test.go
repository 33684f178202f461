package integrationtests

import (
	"testing"

	"github.com/bdskit/ontomake/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cascadeBuildfile = `
project "cascade" {
  default = ["build/c.txt"]
}

rule "a" {
  target  = "build/a.txt"
  deps    = ["src.txt"]
  command = "cp ${dep} ${target}"
}

rule "b" {
  target  = "build/b.txt"
  deps    = ["build/a.txt"]
  command = "exit 3"
}

rule "c" {
  target  = "build/c.txt"
  deps    = ["build/b.txt"]
  command = "cp ${dep} ${target}"
}
`

func TestFailureCascade_SkipsDownstreamAndSurfacesRootCause(t *testing.T) {
	t.Parallel()

	// --- Act ---
	result := testutil.RunBuild(t, map[string]string{
		"ontomake.hcl": cascadeBuildfile,
		"src.txt":      "payload\n",
	}, testutil.Options{})

	// --- Assert ---
	require.Error(t, result.Err)
	assert.ErrorContains(t, result.Err, "build failed for build/b.txt")
	assert.ErrorContains(t, result.Err, "exit status 3")

	testutil.AssertTargetBuilt(t, result, "build/a.txt")
	testutil.AssertTargetNotBuilt(t, result, "build/c.txt")
	assert.Contains(t, result.LogOutput, "Skipping dependent target.")
	assert.Contains(t, result.LogOutput, "built=1")
	assert.Contains(t, result.LogOutput, "failed=1")
	assert.Contains(t, result.LogOutput, "skipped=1")
}

func TestLoadFailure_MismatchedPatternNameSurfacesClearly(t *testing.T) {
	t.Parallel()

	// --- Arrange: a pattern file whose header disagrees with its stem ---
	files := map[string]string{
		"ontomake.hcl": `
project "bdso" {
  default = ["out.txt"]

  paths {
    dosdp_patterns = "patterns"
  }
}

rule "out" {
  target  = "out.txt"
  command = "true"
}
`,
		"patterns/brainCellRegion.yaml": "pattern_name: somethingElse\n",
	}

	// --- Act ---
	result := testutil.RunBuild(t, files, testutil.Options{})

	// --- Assert ---
	require.Error(t, result.Err)
	assert.ErrorContains(t, result.Err, "failed to load buildfile")
	assert.ErrorContains(t, result.Err, "declares pattern_name")
}
