package integrationtests

import (
	"testing"

	"github.com/bdskit/ontomake/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The mirror rule fails loudly if it ever runs, proving that a disabled
// rule is a pure no-op and downstream rules consume whatever snapshot the
// last refresh left behind.
const mirrorBuildfile = `
project "bdso_imports" {
  default = ["imports/ensmusg_import.owl"]

  flags {
    refresh_mirrors = false
  }
}

tool "robot" {
  command = "sh bin/robot"
}

rule "mirror" {
  doc     = "Refresh the upstream snapshot. Off outside release runs."
  target  = "mirror/%.owl"
  command = "exit 86"
  enabled = flags.refresh_mirrors
  atomic  = false
}

rule "import" {
  target  = "imports/%_import.owl"
  deps    = ["mirror/%.owl"]
  command = "${tool.robot} extract --output ${target} ${dep}"
}
`

func mirrorFiles() map[string]string {
	return map[string]string{
		"ontomake.hcl": mirrorBuildfile,
		"bin/robot":    fakeRobot,
	}
}

func TestDisabledMirror_UsesExistingSnapshot(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	files := mirrorFiles()
	files["mirror/ensmusg.owl"] = "upstream axioms\n"

	// --- Act ---
	result := testutil.RunBuild(t, files, testutil.Options{})

	// --- Assert ---
	require.NoError(t, result.Err, result.LogOutput)
	assert.Contains(t, result.LogOutput, "⏭️ Rule disabled, leaving target as-is.")
	assert.Contains(t, testutil.ReadProjectFile(t, result, "imports/ensmusg_import.owl"), "upstream axioms")
	assert.Contains(t, result.LogOutput, "built=1")
	assert.Contains(t, result.LogOutput, "disabled=1")
}

func TestDisabledMirror_MissingSnapshotFailsDownstream(t *testing.T) {
	t.Parallel()

	// --- Act: no mirror snapshot on disk at all ---
	result := testutil.RunBuild(t, mirrorFiles(), testutil.Options{})

	// --- Assert: the import rule itself fails trying to read it ---
	require.Error(t, result.Err)
	assert.ErrorContains(t, result.Err, "imports/ensmusg_import.owl")
	assert.Contains(t, result.LogOutput, "disabled=1")
	assert.Contains(t, result.LogOutput, "failed=1")
}

func TestDisabledMirror_FlagOverrideEnablesRefresh(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	files := mirrorFiles()
	files["mirror/ensmusg.owl"] = "upstream axioms\n"

	// --- Act: turn the mirror rule on, so its failing command now runs ---
	result := testutil.RunBuild(t, files, testutil.Options{
		AlwaysBuild:   true,
		FlagOverrides: map[string]bool{"refresh_mirrors": true},
	})

	// --- Assert ---
	require.Error(t, result.Err)
	assert.ErrorContains(t, result.Err, "mirror/ensmusg.owl")
	assert.ErrorContains(t, result.Err, "exit status 86")
}
