package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertTargetBuilt checks the log output within a HarnessResult to confirm
// that a specific target was actually rebuilt during the run.
func AssertTargetBuilt(t *testing.T, result *HarnessResult, target string) {
	t.Helper()

	expected := fmt.Sprintf("msg=\"✅ Built target.\" target=%s", target)
	require.True(t,
		strings.Contains(result.LogOutput, expected),
		"expected target %q to be rebuilt, logs:\n%s", target, result.LogOutput,
	)
}

// AssertTargetNotBuilt confirms that a specific target was left alone,
// whether because it was fresh, disabled, or skipped.
func AssertTargetNotBuilt(t *testing.T, result *HarnessResult, target string) {
	t.Helper()

	unexpected := fmt.Sprintf("msg=\"✅ Built target.\" target=%s", target)
	require.False(t,
		strings.Contains(result.LogOutput, unexpected),
		"expected target %q not to be rebuilt, logs:\n%s", target, result.LogOutput,
	)
}

// ReadProjectFile reads a file below the harness project directory.
func ReadProjectFile(t *testing.T, result *HarnessResult, rel string) string {
	t.Helper()
	return ReadFile(t, result.Dir, rel)
}
