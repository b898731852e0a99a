package publisher

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sethvargo/go-githubactions"
)

const (
	githubActionsEnvironmentConstant     = "GITHUB_ACTIONS"
	githubStepSummaryEnvironmentConstant = "GITHUB_STEP_SUMMARY"
	githubOutputEnvironmentConstant      = "GITHUB_OUTPUT"
	githubActionsEnabledValueConstant    = "true"
	outcomeOutputNameConstant            = "outcome"
	pullRequestURLOutputNameConstant     = "pull-request-url"
	commitSHAOutputNameConstant          = "commit-sha"
	summaryHeadingConstant               = "## Baseline publication\n\n"
	summaryTableHeaderConstant           = "| Item | Value |\n| --- | --- |\n"
	summaryRowTemplateConstant           = "| %s | %s |\n"
	summaryOutcomeLabelConstant          = "Outcome"
	summaryPullRequestLabelConstant      = "Pull request"
	summaryPullRequestValueTemplate      = "[#%d](%s)"
	summaryCommitLabelConstant           = "Commit"
	summaryChangeKeysLabelConstant       = "Change keys"
	summaryFilesLabelConstant            = "Updated files"
	summaryUploadsLabelConstant          = "Uploaded blobs"
	summaryUploadsValueTemplate          = "%d (%s)"
	summaryTreesLabelConstant            = "Created trees"
	summaryFingerprintLabelConstant      = "Fingerprint"
	summaryCodeValueTemplate             = "`%s`"
	summaryNoChangesValueConstant        = "none"
)

// EnvironmentLookup resolves environment variables.
type EnvironmentLookup func(key string) string

// ActionsReporter writes a step summary and step outputs when running inside GitHub Actions.
type ActionsReporter struct {
	action      *githubactions.Action
	getenv      EnvironmentLookup
	forceReport bool
}

// NewActionsReporter constructs an ActionsReporter. A nil lookup reads the process
// environment; forceReport reports even when GITHUB_ACTIONS is not set.
func NewActionsReporter(lookup EnvironmentLookup, writer io.Writer, forceReport bool) *ActionsReporter {
	if lookup == nil {
		lookup = os.Getenv
	}
	if writer == nil {
		writer = os.Stdout
	}
	action := githubactions.New(
		githubactions.WithGetenv(githubactions.GetenvFunc(lookup)),
		githubactions.WithWriter(writer),
	)
	return &ActionsReporter{action: action, getenv: lookup, forceReport: forceReport}
}

// Enabled reports whether results are published to the workflow.
func (reporter *ActionsReporter) Enabled() bool {
	if reporter.forceReport {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(reporter.getenv(githubActionsEnvironmentConstant)), githubActionsEnabledValueConstant)
}

// Report writes the step outputs and appends a Markdown summary of result.
func (reporter *ActionsReporter) Report(result Result) (reportError error) {
	if !reporter.Enabled() {
		return nil
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			reportError = fmt.Errorf("%v", recovered)
		}
	}()

	if len(reporter.getenv(githubOutputEnvironmentConstant)) > 0 {
		reporter.action.SetOutput(outcomeOutputNameConstant, string(result.Outcome))
		reporter.action.SetOutput(pullRequestURLOutputNameConstant, result.PullRequest.URL)
		reporter.action.SetOutput(commitSHAOutputNameConstant, result.CommitSHA)
	}
	if len(reporter.getenv(githubStepSummaryEnvironmentConstant)) > 0 {
		reporter.action.AddStepSummary(RenderSummary(result))
	}
	return nil
}

// RenderSummary formats result as a Markdown table.
func RenderSummary(result Result) string {
	var builder strings.Builder
	builder.WriteString(summaryHeadingConstant)
	builder.WriteString(summaryTableHeaderConstant)

	writeRow := func(label string, value string) {
		builder.WriteString(fmt.Sprintf(summaryRowTemplateConstant, label, value))
	}

	writeRow(summaryOutcomeLabelConstant, string(result.Outcome))
	pullRequestValue := summaryNoChangesValueConstant
	if result.PullRequest.Number > 0 {
		pullRequestValue = fmt.Sprintf(summaryPullRequestValueTemplate, result.PullRequest.Number, result.PullRequest.URL)
	}
	writeRow(summaryPullRequestLabelConstant, pullRequestValue)
	writeRow(summaryCommitLabelConstant, fmt.Sprintf(summaryCodeValueTemplate, result.CommitSHA))
	writeRow(summaryChangeKeysLabelConstant, strconv.Itoa(result.ChangeKeys))
	writeRow(summaryFilesLabelConstant, strconv.Itoa(result.ChangedFiles))
	writeRow(summaryUploadsLabelConstant, fmt.Sprintf(summaryUploadsValueTemplate, result.UploadedBlobs, humanize.Bytes(uint64(result.UploadedBytes))))
	writeRow(summaryTreesLabelConstant, strconv.Itoa(result.CreatedTrees))
	writeRow(summaryFingerprintLabelConstant, fmt.Sprintf(summaryCodeValueTemplate, result.Fingerprint))
	return builder.String()
}
