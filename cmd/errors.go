package cmd

import (
	"errors"
	"fmt"

	"github.com/Spencerx/releasekit/internal/diagnostics"
)

// exitCode maps a returned error onto the §6 exit-code contract: 0
// success, 1 user error, 2 remote/transient, 3 fatal state, 10 "no
// releasable changes."
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var de *diagnostics.Error
	if errors.As(err, &de) {
		switch de.Code {
		case diagnostics.CodeNoChanges:
			return 10
		case diagnostics.CodeCycle, diagnostics.CodePinRestoreFail:
			return 3
		}

		switch de.Class {
		case diagnostics.ClassPinIntegrity:
			return 3
		case diagnostics.ClassVCSTransient, diagnostics.ClassForgeTransient, diagnostics.ClassRegistryTransient:
			return 2
		case diagnostics.ClassCancellation:
			return 0
		default:
			return 1
		}
	}

	return 1
}

// renderError formats err for stderr. A diagnostics.Error carries a
// stable code and remediation hint; anything else is a plain Go error
// from a collaborator outside the core's error taxonomy.
func renderError(err error) string {
	var de *diagnostics.Error
	if errors.As(err, &de) {
		if de.Hint != "" {
			return fmt.Sprintf("error: [%s] %s\n  hint: %s", de.Code, de.Summary, de.Hint)
		}
		return fmt.Sprintf("error: [%s] %s", de.Code, de.Summary)
	}
	return fmt.Sprintf("error: %v", err)
}
