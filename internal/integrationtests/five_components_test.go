package integrationtests

import (
	"testing"

	"github.com/bdskit/ontomake/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// One dataset fans out into five component flavors whose targets overlap:
// components/CCN202002013_class.owl matches both the %.owl and %_class.owl
// patterns, and components/all_templates.owl matches %.owl. Rule selection
// has to prefer the exact target and then the pattern with more literal
// characters for the merge to come out right.
const fiveComponentBuildfile = `
project "bdso_templates" {
  jobs    = ["CCN202002013"]
  default = ["components/all_templates.owl"]

  paths {
    templates = "templates"
  }
}

tool "robot" {
  command = "sh bin/robot"
}

rule "job_curation" {
  target  = "components/%.owl"
  deps    = ["${paths.templates}/%.tsv"]
  command = "${tool.robot} template --output ${target} ${dep}"
}

rule "job_class" {
  target  = "components/%_class.owl"
  deps    = ["${paths.templates}/%_class.tsv"]
  command = "${tool.robot} template --output ${target} ${dep}"
}

rule "job_equivalent_class" {
  target  = "components/%_equivalent_class.owl"
  deps    = ["${paths.templates}/%_equivalent_class.tsv"]
  command = "${tool.robot} template --output ${target} ${dep}"
}

rule "job_minimal_markers" {
  target  = "components/%_minimal_markers.owl"
  deps    = ["${paths.templates}/%_minimal_markers.tsv"]
  command = "${tool.robot} template --output ${target} ${dep}"
}

rule "job_non_taxonomy_classification" {
  target  = "components/%_non_taxonomy_classification.owl"
  deps    = ["${paths.templates}/%_non_taxonomy_classification.tsv"]
  command = "${tool.robot} template --output ${target} ${dep}"
}

rule "all_templates" {
  target = "components/all_templates.owl"
  deps = concat(
    jobfiles("components/%.owl"),
    jobfiles("components/%_class.owl"),
    jobfiles("components/%_equivalent_class.owl"),
    jobfiles("components/%_minimal_markers.owl"),
    jobfiles("components/%_non_taxonomy_classification.owl")
  )
  command = "${tool.robot} merge --output ${target} ${join(" ", deps)}"
}
`

func TestAllTemplates_MergesFiveComponentsPerJob(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	files := map[string]string{
		"ontomake.hcl": fiveComponentBuildfile,
		"bin/robot":    fakeRobot,
		"templates/CCN202002013.tsv":                             "curation rows\n",
		"templates/CCN202002013_class.tsv":                       "class rows\n",
		"templates/CCN202002013_equivalent_class.tsv":            "equivalent class rows\n",
		"templates/CCN202002013_minimal_markers.tsv":             "minimal marker rows\n",
		"templates/CCN202002013_non_taxonomy_classification.tsv": "non taxonomy rows\n",
	}

	// --- Act ---
	result := testutil.RunBuild(t, files, testutil.Options{})

	// --- Assert ---
	require.NoError(t, result.Err, result.LogOutput)

	merged := testutil.ReadProjectFile(t, result, "components/all_templates.owl")
	assert.Contains(t, merged, "curation rows")
	assert.Contains(t, merged, "class rows")
	assert.Contains(t, merged, "equivalent class rows")
	assert.Contains(t, merged, "minimal marker rows")
	assert.Contains(t, merged, "non taxonomy rows")

	// The class component must be built by the class rule, not by the
	// catch-all curation rule with stem CCN202002013_class.
	classComponent := testutil.ReadProjectFile(t, result, "components/CCN202002013_class.owl")
	assert.Contains(t, classComponent, "class rows")
	assert.Contains(t, result.LogOutput,
		`target=components/CCN202002013_class.owl rule=job_class`)

	// Five components plus the merge.
	assert.Contains(t, result.LogOutput, "built=6")
}
