package publisher_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/prbaseline/internal/gitdata"
	"github.com/temirov/prbaseline/internal/publisher"
)

const (
	reporterOutsideActionsCaseConstant = "outside github actions"
	reporterInsideActionsCaseConstant  = "inside github actions"
	reporterForcedCaseConstant         = "forced outside github actions"
	testCommitSHAConstant              = "0123456789abcdef0123456789abcdef01234567"
	testPullRequestHTMLURLConstant     = "https://github.com/octo/baselines/pull/7"
)

func sampleResult() publisher.Result {
	return publisher.Result{
		Outcome:       publisher.OutcomeCreated,
		PullRequest:   gitdata.PullRequest{Number: 7, URL: testPullRequestHTMLURLConstant},
		CommitSHA:     testCommitSHAConstant,
		Fingerprint:   "00000000deadbeef",
		ChangeKeys:    2,
		ChangedFiles:  3,
		CreatedTrees:  4,
		UploadedBlobs: 2,
		UploadedBytes: 2048,
	}
}

func TestRenderSummary(testInstance *testing.T) {
	summary := publisher.RenderSummary(sampleResult())
	require.Contains(testInstance, summary, "## Baseline publication")
	require.Contains(testInstance, summary, "| Outcome | created |")
	require.Contains(testInstance, summary, "| Pull request | [#7]("+testPullRequestHTMLURLConstant+") |")
	require.Contains(testInstance, summary, "| Uploaded blobs | 2 (2.0 kB) |")
	require.Contains(testInstance, summary, "| Fingerprint | `00000000deadbeef` |")

	noChanges := publisher.RenderSummary(publisher.Result{Outcome: publisher.OutcomeNoChanges})
	require.Contains(testInstance, noChanges, "| Pull request | none |")
}

func TestActionsReporter(testInstance *testing.T) {
	testCases := []struct {
		name          string
		actionsValue  string
		forceReport   bool
		expectReports bool
	}{
		{name: reporterOutsideActionsCaseConstant},
		{name: reporterInsideActionsCaseConstant, actionsValue: "true", expectReports: true},
		{name: reporterForcedCaseConstant, forceReport: true, expectReports: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			workingDirectory := subTest.TempDir()
			summaryPath := filepath.Join(workingDirectory, "summary.md")
			outputPath := filepath.Join(workingDirectory, "output.txt")
			environment := map[string]string{
				"GITHUB_ACTIONS":      testCase.actionsValue,
				"GITHUB_STEP_SUMMARY": summaryPath,
				"GITHUB_OUTPUT":       outputPath,
			}

			reporter := publisher.NewActionsReporter(func(key string) string { return environment[key] }, &bytes.Buffer{}, testCase.forceReport)
			require.Equal(subTest, testCase.expectReports, reporter.Enabled())
			require.NoError(subTest, reporter.Report(sampleResult()))

			summaryContent, summaryError := os.ReadFile(summaryPath)
			outputContent, outputError := os.ReadFile(outputPath)
			if !testCase.expectReports {
				require.True(subTest, os.IsNotExist(summaryError))
				require.True(subTest, os.IsNotExist(outputError))
				return
			}

			require.NoError(subTest, summaryError)
			require.Contains(subTest, string(summaryContent), "## Baseline publication")
			require.NoError(subTest, outputError)
			require.Contains(subTest, string(outputContent), "outcome")
			require.Contains(subTest, string(outputContent), "created")
			require.Contains(subTest, string(outputContent), "pull-request-url")
			require.Contains(subTest, string(outputContent), testPullRequestHTMLURLConstant)
			require.Contains(subTest, string(outputContent), testCommitSHAConstant)
		})
	}
}

func TestActionsReporterSkipsMissingFileCommands(testInstance *testing.T) {
	reporter := publisher.NewActionsReporter(func(key string) string {
		if key == "GITHUB_ACTIONS" {
			return "true"
		}
		return ""
	}, &bytes.Buffer{}, false)
	require.NoError(testInstance, reporter.Report(sampleResult()))
}
