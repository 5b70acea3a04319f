package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hashicorp/hcl/v2"
)

// RequireNoErrorDiags fails the test when any error-severity diagnostic was
// accumulated, printing them all for context.
func RequireNoErrorDiags(t *testing.T, diags hcl.Diagnostics) {
	t.Helper()
	if !diags.HasErrors() {
		return
	}
	for _, d := range diags.Errs() {
		t.Logf("diagnostic: %s", d.Error())
	}
	require.False(t, diags.HasErrors(), "unexpected error diagnostics")
}

// RequireDiag asserts that at least one diagnostic carries the given
// summary.
func RequireDiag(t *testing.T, diags hcl.Diagnostics, summary string) *hcl.Diagnostic {
	t.Helper()
	for _, d := range diags {
		if d.Summary == summary {
			return d
		}
	}
	require.Failf(t, "missing diagnostic", "no diagnostic with summary %q in %d diagnostics", summary, len(diags))
	return nil
}
