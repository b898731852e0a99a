package baseline

import "context"

// LicensePolicy reconciles exclusion keys by intersecting the lines of every
// local file and treats the empty license baseline as a deletion.
type LicensePolicy struct {
	policyBase
}

// Kind reports PipelineKindLicense.
func (policy *LicensePolicy) Kind() PipelineKind {
	return PipelineKindLicense
}

// Reconcile implements ReconciliationPolicy.
func (policy *LicensePolicy) Reconcile(executionContext context.Context, changes ChangeSet, current EntrySet) ([]ReconciliationResult, error) {
	return policy.reconcile(executionContext, PipelineKindLicense, changes, current, policy.reconcileExclusions)
}

func (policy *LicensePolicy) reconcileExclusions(_ context.Context, changeKey ChangeKey, contents [][]byte, _ EntrySet) (ReconciliationResult, error) {
	outputPath := policy.exclusionPath(changeKey)
	if len(contents) == 0 {
		return ReconciliationResult{Key: changeKey, Path: outputPath, Absent: true}, nil
	}

	runningLines := significantLines(contents[0])
	for _, content := range contents[1:] {
		runningLines = intersectLines(runningLines, significantLines(content))
	}

	if len(runningLines) == 0 {
		return ReconciliationResult{Key: changeKey, Path: outputPath, Absent: true}, nil
	}
	return ReconciliationResult{Key: changeKey, Path: outputPath, Content: joinLines(runningLines, newFileLayout(contents[0]))}, nil
}
