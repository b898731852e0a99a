package publisher

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/prbaseline/internal/dependencies"
	"github.com/temirov/prbaseline/internal/utils"
)

const (
	publishCommandUseConstant               = "publish"
	publishCommandShortDescriptionConstant  = "Publish updated baseline files as a pull request"
	publishCommandLongDescriptionConstant   = "publish reconciles locally generated Updated* baseline and exclusion files with the remote tree, commits the result and creates or updates the pull request named by --title."
	unexpectedArgumentsErrorMessageConstant = "publish does not accept positional arguments"
	commandExecutionErrorTemplateConstant   = "publish failed: %w"
	repositoryFlagNameConstant              = "repository"
	repositoryFlagDescriptionConstant       = "Repository as owner/name or remote URL (defaults to the origin remote)"
	backendFlagNameConstant                 = "backend"
	backendFlagDescriptionConstant          = "Remote backend: gh, api or local"
	originalPathFlagNameConstant            = "original-path"
	originalPathFlagDescriptionConstant     = "Path of the baseline directory inside the repository"
	updatedPathFlagNameConstant             = "updated-path"
	updatedPathFlagDescriptionConstant      = "Local directory containing the updated files"
	buildIDFlagNameConstant                 = "build-id"
	buildIDFlagDescriptionConstant          = "Build identifier quoted in the commit and pull request"
	titleFlagNameConstant                   = "title"
	titleFlagDescriptionConstant            = "Pull request title; an open pull request with this title is updated"
	targetBranchFlagNameConstant            = "target-branch"
	targetBranchFlagDescriptionConstant     = "Branch the pull request targets"
	pipelineFlagNameConstant                = "pipeline"
	pipelineFlagDescriptionConstant         = "Pipeline kind: Sdk or License"
	filePrefixFlagNameConstant              = "updated-file-prefix"
	filePrefixFlagDescriptionConstant       = "File name prefix marking updated files"
	exclusionsMarkerFlagNameConstant        = "exclusions-marker"
	exclusionsMarkerFlagDescriptionConstant = "Change key marker selecting exclusion lists"
	branchPrefixFlagNameConstant            = "branch-prefix"
	branchPrefixFlagDescriptionConstant     = "Prefix of branches created for new pull requests"
	buildLinkPrefixFlagNameConstant         = "build-link-prefix"
	buildLinkPrefixFlagDescriptionConstant  = "URL prefix joined with the build identifier"
	updateBodyFlagNameConstant              = "update-existing-body"
	updateBodyFlagDescriptionConstant       = "Refresh the body of an existing pull request"
	parallelUploadsFlagNameConstant         = "max-parallel-uploads"
	parallelUploadsFlagDescriptionConstant  = "Maximum concurrent blob uploads"
	stepSummaryFlagNameConstant             = "step-summary"
	stepSummaryFlagDescriptionConstant      = "Write the GitHub Actions step summary outside of GitHub Actions"
	localRepositoryFlagNameConstant         = "local-repository"
	localRepositoryFlagDescriptionConstant  = "Repository used by the local backend"
	localLedgerFlagNameConstant             = "pull-request-ledger"
	localLedgerFlagDescriptionConstant      = "YAML pull request ledger used by the local backend"
	apiBaseURLFlagNameConstant              = "api-base-url"
	apiBaseURLFlagDescriptionConstant       = "GitHub REST API base URL used by the api backend"
	effectiveConfigurationMessageConstant   = "publish configuration resolved"
	embeddedConfigurationLabelConstant      = "embedded defaults"
	configurationFileLogFieldConstant       = "config_file"
	backendLogFieldConstant                 = "backend"
	pipelineLogFieldConstant                = "pipeline"
	targetBranchLogFieldConstant            = "target_branch"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current publish configuration.
type ConfigurationProvider func() Configuration

// CommandBuilder assembles the publish command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        ConfigurationProvider
	RepositoryResolver           RepositoryResolver
	FileSystem                   afero.Fs
	Clock                        Clock
	EnvironmentLookup            EnvironmentLookup
	OutputWriter                 io.Writer
	WorkingDirectory             string
}

// Build constructs the publish command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	publishCommand := &cobra.Command{
		Use:   publishCommandUseConstant,
		Short: publishCommandShortDescriptionConstant,
		Long:  publishCommandLongDescriptionConstant,
		RunE:  builder.runPublish,
	}

	flags := publishCommand.Flags()
	flags.String(repositoryFlagNameConstant, "", repositoryFlagDescriptionConstant)
	flags.String(backendFlagNameConstant, "", backendFlagDescriptionConstant)
	flags.String(originalPathFlagNameConstant, "", originalPathFlagDescriptionConstant)
	flags.String(updatedPathFlagNameConstant, "", updatedPathFlagDescriptionConstant)
	flags.Int(buildIDFlagNameConstant, 0, buildIDFlagDescriptionConstant)
	flags.String(titleFlagNameConstant, "", titleFlagDescriptionConstant)
	flags.String(targetBranchFlagNameConstant, "", targetBranchFlagDescriptionConstant)
	flags.String(pipelineFlagNameConstant, "", pipelineFlagDescriptionConstant)
	flags.String(filePrefixFlagNameConstant, "", filePrefixFlagDescriptionConstant)
	flags.String(exclusionsMarkerFlagNameConstant, "", exclusionsMarkerFlagDescriptionConstant)
	flags.String(branchPrefixFlagNameConstant, "", branchPrefixFlagDescriptionConstant)
	flags.String(buildLinkPrefixFlagNameConstant, "", buildLinkPrefixFlagDescriptionConstant)
	flags.Bool(updateBodyFlagNameConstant, true, updateBodyFlagDescriptionConstant)
	flags.Int(parallelUploadsFlagNameConstant, 0, parallelUploadsFlagDescriptionConstant)
	flags.Bool(stepSummaryFlagNameConstant, false, stepSummaryFlagDescriptionConstant)
	flags.String(localRepositoryFlagNameConstant, "", localRepositoryFlagDescriptionConstant)
	flags.String(localLedgerFlagNameConstant, "", localLedgerFlagDescriptionConstant)
	flags.String(apiBaseURLFlagNameConstant, "", apiBaseURLFlagDescriptionConstant)

	return publishCommand, nil
}

func (builder *CommandBuilder) runPublish(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errors.New(unexpectedArgumentsErrorMessageConstant)
	}

	configuration, configurationError := builder.parseConfiguration(command)
	if configurationError != nil {
		return configurationError
	}
	options, optionsError := configuration.Options()
	if optionsError != nil {
		return optionsError
	}

	logger := builder.resolveLogger()
	logEffectiveConfiguration(command, logger, configuration)

	repository, repositoryError := builder.resolveRepositoryResolver().Resolve(command.Context(), logger, configuration)
	if repositoryError != nil {
		return repositoryError
	}

	service, serviceError := NewService(ServiceDependencies{
		Logger:     logger,
		Repository: repository,
		FileSystem: dependencies.ResolveFileSystem(builder.FileSystem),
		Clock:      builder.Clock,
		Reporter:   NewActionsReporter(builder.EnvironmentLookup, builder.resolveOutputWriter(command), configuration.StepSummary),
	})
	if serviceError != nil {
		return serviceError
	}

	if _, publishError := service.Publish(command.Context(), options); publishError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, publishError)
	}
	return nil
}

// logEffectiveConfiguration reports which configuration file fed the run when
// the root command recorded one in the command context.
func logEffectiveConfiguration(command *cobra.Command, logger *zap.Logger, configuration Configuration) {
	configurationFilePath, configurationFilePathAvailable := utils.NewCommandContextAccessor().ConfigurationFilePath(command.Context())
	if !configurationFilePathAvailable {
		return
	}
	if len(strings.TrimSpace(configurationFilePath)) == 0 {
		configurationFilePath = embeddedConfigurationLabelConstant
	}
	logger.Info(
		effectiveConfigurationMessageConstant,
		zap.String(configurationFileLogFieldConstant, configurationFilePath),
		zap.String(backendLogFieldConstant, configuration.Backend),
		zap.String(pipelineLogFieldConstant, configuration.Pipeline),
		zap.String(targetBranchLogFieldConstant, configuration.TargetBranch),
	)
}

func (builder *CommandBuilder) parseConfiguration(command *cobra.Command) (Configuration, error) {
	configuration := builder.resolveConfiguration()
	flags := command.Flags()

	stringOverrides := []struct {
		flagName string
		target   *string
	}{
		{flagName: repositoryFlagNameConstant, target: &configuration.Repository},
		{flagName: backendFlagNameConstant, target: &configuration.Backend},
		{flagName: originalPathFlagNameConstant, target: &configuration.OriginalPath},
		{flagName: updatedPathFlagNameConstant, target: &configuration.UpdatedPath},
		{flagName: titleFlagNameConstant, target: &configuration.Title},
		{flagName: targetBranchFlagNameConstant, target: &configuration.TargetBranch},
		{flagName: pipelineFlagNameConstant, target: &configuration.Pipeline},
		{flagName: filePrefixFlagNameConstant, target: &configuration.UpdatedFilePrefix},
		{flagName: exclusionsMarkerFlagNameConstant, target: &configuration.ExclusionsMarker},
		{flagName: branchPrefixFlagNameConstant, target: &configuration.BranchPrefix},
		{flagName: buildLinkPrefixFlagNameConstant, target: &configuration.BuildLinkPrefix},
		{flagName: localRepositoryFlagNameConstant, target: &configuration.Local.RepositoryPath},
		{flagName: localLedgerFlagNameConstant, target: &configuration.Local.PullRequestLedger},
		{flagName: apiBaseURLFlagNameConstant, target: &configuration.API.BaseURL},
	}
	for _, override := range stringOverrides {
		flagValue, flagError := flags.GetString(override.flagName)
		if flagError != nil {
			return Configuration{}, flagError
		}
		*override.target = selectStringValue(flagValue, *override.target)
	}

	if flags.Changed(buildIDFlagNameConstant) {
		buildIDValue, buildIDError := flags.GetInt(buildIDFlagNameConstant)
		if buildIDError != nil {
			return Configuration{}, buildIDError
		}
		configuration.BuildID = buildIDValue
	}

	if flags.Changed(parallelUploadsFlagNameConstant) {
		parallelValue, parallelError := flags.GetInt(parallelUploadsFlagNameConstant)
		if parallelError != nil {
			return Configuration{}, parallelError
		}
		configuration.MaxParallelUploads = parallelValue
	}

	if flags.Changed(updateBodyFlagNameConstant) {
		updateBodyValue, updateBodyError := flags.GetBool(updateBodyFlagNameConstant)
		if updateBodyError != nil {
			return Configuration{}, updateBodyError
		}
		configuration.UpdateExistingBody = updateBodyValue
	}

	if flags.Changed(stepSummaryFlagNameConstant) {
		stepSummaryValue, stepSummaryError := flags.GetBool(stepSummaryFlagNameConstant)
		if stepSummaryError != nil {
			return Configuration{}, stepSummaryError
		}
		configuration.StepSummary = stepSummaryValue
	}

	return configuration.Sanitize(), nil
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}

	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}

func (builder *CommandBuilder) resolveConfiguration() Configuration {
	if builder.ConfigurationProvider == nil {
		return DefaultConfiguration()
	}
	return builder.ConfigurationProvider()
}

func (builder *CommandBuilder) resolveRepositoryResolver() RepositoryResolver {
	if builder.RepositoryResolver != nil {
		return builder.RepositoryResolver
	}

	humanReadableLogs := false
	if builder.HumanReadableLoggingProvider != nil {
		humanReadableLogs = builder.HumanReadableLoggingProvider()
	}
	return &DefaultRepositoryResolver{
		FileSystem:        builder.FileSystem,
		WorkingDirectory:  builder.WorkingDirectory,
		HumanReadableLogs: humanReadableLogs,
	}
}

func (builder *CommandBuilder) resolveOutputWriter(command *cobra.Command) io.Writer {
	if builder.OutputWriter != nil {
		return builder.OutputWriter
	}
	return command.OutOrStdout()
}

func selectStringValue(flagValue string, configurationValue string) string {
	trimmedFlagValue := strings.TrimSpace(flagValue)
	if len(trimmedFlagValue) > 0 {
		return trimmedFlagValue
	}

	return strings.TrimSpace(configurationValue)
}
