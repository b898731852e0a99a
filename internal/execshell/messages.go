package execshell

import (
	"fmt"
	"net/url"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	exitCodeSuffixTemplateConstant          = " (exit code %d%s)"
	executionFailureSuffixTemplateConstant  = ": %s"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
)

const (
	gitRemoteSubcommandNameConstant       = "remote"
	gitRemoteGetURLSubcommandNameConstant = "get-url"
	githubAPICommandNameConstant          = "api"
	githubMethodFlagConstant              = "--method"
	githubMethodShortFlagConstant         = "-X"
	githubRepositoryEndpointPrefix        = "repos/"
	githubGitTreesResourceConstant        = "git/trees"
	githubGitBlobsResourceConstant        = "git/blobs"
	githubGitCommitsResourceConstant      = "git/commits"
	githubGitRefsResourceConstant         = "git/refs"
	githubGitRefResourceConstant          = "git/ref"
	githubCompareResourceConstant         = "compare"
	githubPullsResourceConstant           = "pulls"
	githubStateQueryParameterConstant     = "state"
	githubBaseQueryParameterConstant      = "base"
	headsReferencePrefixConstant          = "heads/"
	httpMethodGetConstant                 = "GET"
	httpMethodPostConstant                = "POST"
	httpMethodPatchConstant               = "PATCH"
)

// messageTemplates holds the wording of one operation; every template receives the same subjects.
type messageTemplates struct {
	start            string
	success          string
	failure          string
	executionFailure string
}

var (
	gitRemoteLookupTemplates = messageTemplates{
		start:            "Checking %s remote for %s",
		success:          "Read %s remote for %s",
		failure:          "Failed to read %s remote for %s",
		executionFailure: "Unable to read %s remote for %s",
	}
	pullRequestListTemplates = messageTemplates{
		start:            "Listing %s pull requests in %s targeting %s",
		success:          "Listed %s pull requests in %s targeting %s",
		failure:          "Failed to list %s pull requests in %s targeting %s",
		executionFailure: "Unable to list %s pull requests in %s targeting %s",
	}
	treeListingTemplates = messageTemplates{
		start:            "Listing tree %s in %s",
		success:          "Listed tree %s in %s",
		failure:          "Failed to list tree %s in %s",
		executionFailure: "Unable to list tree %s in %s",
	}
	blobReadTemplates = messageTemplates{
		start:            "Reading blob %s from %s",
		success:          "Read blob %s from %s",
		failure:          "Failed to read blob %s from %s",
		executionFailure: "Unable to read blob %s from %s",
	}
	blobCreationTemplates = messageTemplates{
		start:            "Uploading blob to %s",
		success:          "Uploaded blob to %s",
		failure:          "Failed to upload blob to %s",
		executionFailure: "Unable to upload blob to %s",
	}
	treeCreationTemplates = messageTemplates{
		start:            "Creating tree in %s",
		success:          "Created tree in %s",
		failure:          "Failed to create tree in %s",
		executionFailure: "Unable to create tree in %s",
	}
	branchLookupTemplates = messageTemplates{
		start:            "Resolving branch %s in %s",
		success:          "Resolved branch %s in %s",
		failure:          "Failed to resolve branch %s in %s",
		executionFailure: "Unable to resolve branch %s in %s",
	}
	commitCreationTemplates = messageTemplates{
		start:            "Creating commit in %s",
		success:          "Created commit in %s",
		failure:          "Failed to create commit in %s",
		executionFailure: "Unable to create commit in %s",
	}
	branchCreationTemplates = messageTemplates{
		start:            "Creating branch reference in %s",
		success:          "Created branch reference in %s",
		failure:          "Failed to create branch reference in %s",
		executionFailure: "Unable to create branch reference in %s",
	}
	branchUpdateTemplates = messageTemplates{
		start:            "Moving branch %s in %s",
		success:          "Moved branch %s in %s",
		failure:          "Failed to move branch %s in %s",
		executionFailure: "Unable to move branch %s in %s",
	}
	commitComparisonTemplates = messageTemplates{
		start:            "Comparing %s in %s",
		success:          "Compared %s in %s",
		failure:          "Failed to compare %s in %s",
		executionFailure: "Unable to compare %s in %s",
	}
	pullRequestCreationTemplates = messageTemplates{
		start:            "Opening pull request in %s",
		success:          "Opened pull request in %s",
		failure:          "Failed to open pull request in %s",
		executionFailure: "Unable to open pull request in %s",
	}
	pullRequestUpdateTemplates = messageTemplates{
		start:            "Updating pull request #%s in %s",
		success:          "Updated pull request #%s in %s",
		failure:          "Failed to update pull request #%s in %s",
		executionFailure: "Unable to update pull request #%s in %s",
	}
)

// describedCommand pairs the wording of a recognized command with its subjects.
type describedCommand struct {
	templates messageTemplates
	subjects  []any
}

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	description, recognized := formatter.describe(command)
	if !recognized {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	templates := description.templates
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(templates.start, description.subjects...)
	case messageStageSuccess:
		return fmt.Sprintf(templates.success, description.subjects...)
	case messageStageFailure:
		return fmt.Sprintf(templates.failure, description.subjects...) + fmt.Sprintf(exitCodeSuffixTemplateConstant, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(templates.executionFailure, description.subjects...) + fmt.Sprintf(executionFailureSuffixTemplateConstant, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describe(command ShellCommand) (describedCommand, bool) {
	arguments := command.Details.Arguments
	if len(arguments) == 0 {
		return describedCommand{}, false
	}
	switch command.Name {
	case CommandGit:
		return formatter.describeGitCommand(command)
	case CommandGitHub:
		switch strings.TrimSpace(arguments[0]) {
		case githubAPICommandNameConstant:
			return formatter.describeGitHubAPICommand(arguments)
		}
	}
	return describedCommand{}, false
}

func (formatter CommandMessageFormatter) describeGitCommand(command ShellCommand) (describedCommand, bool) {
	arguments := command.Details.Arguments
	if len(arguments) < 3 || arguments[0] != gitRemoteSubcommandNameConstant || arguments[1] != gitRemoteGetURLSubcommandNameConstant {
		return describedCommand{}, false
	}
	return describedCommand{
		templates: gitRemoteLookupTemplates,
		subjects:  []any{formatter.ensureValue(arguments[2]), formatter.describeWorkingDirectory(command)},
	}, true
}

// describeGitHubAPICommand recognizes the git data and pull request endpoints of "gh api <endpoint>".
func (formatter CommandMessageFormatter) describeGitHubAPICommand(arguments []string) (describedCommand, bool) {
	if len(arguments) < 2 {
		return describedCommand{}, false
	}
	repository, resource, parsed := splitRepositoryEndpoint(arguments[1])
	if !parsed {
		return describedCommand{}, false
	}
	method := strings.ToUpper(strings.TrimSpace(findFlagValue(arguments, githubMethodFlagConstant)))
	if len(method) == 0 {
		method = strings.ToUpper(strings.TrimSpace(findFlagValue(arguments, githubMethodShortFlagConstant)))
	}
	if len(method) == 0 {
		method = httpMethodGetConstant
	}

	resourcePath, resourceQuery, _ := strings.Cut(resource, "?")
	switch {
	case method == httpMethodGetConstant && strings.HasPrefix(resourcePath, githubGitTreesResourceConstant+"/"):
		return formatter.withSubjects(treeListingTemplates, unescapeSegment(strings.TrimPrefix(resourcePath, githubGitTreesResourceConstant+"/")), repository), true
	case method == httpMethodGetConstant && strings.HasPrefix(resourcePath, githubGitBlobsResourceConstant+"/"):
		return formatter.withSubjects(blobReadTemplates, strings.TrimPrefix(resourcePath, githubGitBlobsResourceConstant+"/"), repository), true
	case method == httpMethodPostConstant && resourcePath == githubGitBlobsResourceConstant:
		return formatter.withSubjects(blobCreationTemplates, repository), true
	case method == httpMethodPostConstant && resourcePath == githubGitTreesResourceConstant:
		return formatter.withSubjects(treeCreationTemplates, repository), true
	case method == httpMethodGetConstant && strings.HasPrefix(resourcePath, githubGitRefResourceConstant+"/"+headsReferencePrefixConstant):
		return formatter.withSubjects(branchLookupTemplates, unescapeSegment(strings.TrimPrefix(resourcePath, githubGitRefResourceConstant+"/"+headsReferencePrefixConstant)), repository), true
	case method == httpMethodPostConstant && resourcePath == githubGitCommitsResourceConstant:
		return formatter.withSubjects(commitCreationTemplates, repository), true
	case method == httpMethodPostConstant && resourcePath == githubGitRefsResourceConstant:
		return formatter.withSubjects(branchCreationTemplates, repository), true
	case method == httpMethodPatchConstant && strings.HasPrefix(resourcePath, githubGitRefsResourceConstant+"/"+headsReferencePrefixConstant):
		return formatter.withSubjects(branchUpdateTemplates, unescapeSegment(strings.TrimPrefix(resourcePath, githubGitRefsResourceConstant+"/"+headsReferencePrefixConstant)), repository), true
	case method == httpMethodGetConstant && strings.HasPrefix(resourcePath, githubCompareResourceConstant+"/"):
		return formatter.withSubjects(commitComparisonTemplates, unescapeSegment(strings.TrimPrefix(resourcePath, githubCompareResourceConstant+"/")), repository), true
	case method == httpMethodGetConstant && resourcePath == githubPullsResourceConstant:
		queryValues, _ := url.ParseQuery(resourceQuery)
		return formatter.withSubjects(pullRequestListTemplates, queryValues.Get(githubStateQueryParameterConstant), repository, queryValues.Get(githubBaseQueryParameterConstant)), true
	case method == httpMethodPostConstant && resourcePath == githubPullsResourceConstant:
		return formatter.withSubjects(pullRequestCreationTemplates, repository), true
	case method == httpMethodPatchConstant && strings.HasPrefix(resourcePath, githubPullsResourceConstant+"/"):
		return formatter.withSubjects(pullRequestUpdateTemplates, strings.TrimPrefix(resourcePath, githubPullsResourceConstant+"/"), repository), true
	default:
		return describedCommand{}, false
	}
}

func (formatter CommandMessageFormatter) withSubjects(templates messageTemplates, subjects ...string) describedCommand {
	described := describedCommand{templates: templates, subjects: make([]any, 0, len(subjects))}
	for _, subject := range subjects {
		described.subjects = append(described.subjects, formatter.ensureValue(subject))
	}
	return described
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandLabel := string(command.Name)
	if len(command.Details.Arguments) > 0 {
		commandLabel = fmt.Sprintf("%s %s", commandLabel, strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant))
	}
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, formatter.formatWorkingDirectorySuffix(command))
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmedValue
}

// splitRepositoryEndpoint splits "repos/<owner>/<name>/<resource>" into "<owner>/<name>" and "<resource>".
func splitRepositoryEndpoint(endpoint string) (string, string, bool) {
	trimmedEndpoint := strings.TrimPrefix(strings.TrimSpace(endpoint), "/")
	if !strings.HasPrefix(trimmedEndpoint, githubRepositoryEndpointPrefix) {
		return "", "", false
	}
	segments := strings.SplitN(strings.TrimPrefix(trimmedEndpoint, githubRepositoryEndpointPrefix), "/", 3)
	if len(segments) < 3 {
		return "", "", false
	}
	return segments[0] + "/" + segments[1], segments[2], true
}

func unescapeSegment(segment string) string {
	unescaped, unescapeError := url.PathUnescape(segment)
	if unescapeError != nil {
		return segment
	}
	return unescaped
}

func findFlagValue(arguments []string, flag string) string {
	for argumentIndex := 0; argumentIndex < len(arguments)-1; argumentIndex++ {
		if strings.TrimSpace(arguments[argumentIndex]) == flag {
			return arguments[argumentIndex+1]
		}
	}
	return emptyStringConstant
}
