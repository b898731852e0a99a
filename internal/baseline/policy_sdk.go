package baseline

import (
	"context"

	"github.com/samber/lo"
)

// SdkPolicy reconciles exclusion keys by union with subtraction: the existing
// published file keeps only the lines still present in the union of the local files.
type SdkPolicy struct {
	policyBase
}

// Kind reports PipelineKindSdk.
func (policy *SdkPolicy) Kind() PipelineKind {
	return PipelineKindSdk
}

// Reconcile implements ReconciliationPolicy.
func (policy *SdkPolicy) Reconcile(executionContext context.Context, changes ChangeSet, current EntrySet) ([]ReconciliationResult, error) {
	return policy.reconcile(executionContext, PipelineKindSdk, changes, current, policy.reconcileExclusions)
}

func (policy *SdkPolicy) reconcileExclusions(executionContext context.Context, changeKey ChangeKey, contents [][]byte, current EntrySet) (ReconciliationResult, error) {
	outputPath := policy.exclusionPath(changeKey)
	unionLines := lo.Union(lo.Map(contents, func(content []byte, _ int) []string {
		return significantLines(content)
	})...)

	if policy.blobReader != nil {
		existingContent, exists, readError := current.ReadContent(executionContext, outputPath, policy.blobReader)
		if readError != nil {
			return ReconciliationResult{}, readError
		}
		if exists {
			existingLines, existingLayout := splitLines(existingContent)
			survivingLines := intersectLines(existingLines, unionLines)
			if len(survivingLines) == 0 {
				return ReconciliationResult{Key: changeKey, Path: outputPath, Absent: true}, nil
			}
			return ReconciliationResult{Key: changeKey, Path: outputPath, Content: joinLines(survivingLines, existingLayout)}, nil
		}
	}

	if len(unionLines) == 0 {
		return ReconciliationResult{Key: changeKey, Path: outputPath, Absent: true}, nil
	}
	return ReconciliationResult{Key: changeKey, Path: outputPath, Content: joinLines(unionLines, newFileLayout(contents[0]))}, nil
}
