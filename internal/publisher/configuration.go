package publisher

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/temirov/prbaseline/internal/baseline"
	pathutils "github.com/temirov/prbaseline/internal/utils/path"
)

const (
	// DefaultBranchPrefixConstant prefixes branches created for new pull requests.
	DefaultBranchPrefixConstant = "pr-baseline-"
	// DefaultBuildLinkPrefixConstant is prepended to the build identifier in commit and pull request text.
	DefaultBuildLinkPrefixConstant = "https://dev.azure.com/dnceng/internal/_build/results?buildId="
	// DefaultTargetBranchConstant is the branch pull requests target when none is configured.
	DefaultTargetBranchConstant = "main"

	defaultRequestTimeoutConstant       = 30 * time.Second
	defaultParallelUploadsConstant      = 1
	requiredValueMessageConstant        = "value required"
	positiveValueMessageConstant        = "must be greater than zero"
	unsupportedBackendTemplateConstant  = "%w: unsupported backend %q"
	originalPathFieldConstant           = "original_path"
	updatedPathFieldConstant            = "updated_path"
	buildIDFieldConstant                = "build_id"
	titleFieldConstant                  = "title"
	targetBranchFieldConstant           = "target_branch"
	backendFieldConstant                = "backend"
	configurationKeyRepositoryConstant  = "publish.repository"
	configurationKeyBackendConstant     = "publish.backend"
	configurationKeyOriginalPathConst   = "publish.original_path"
	configurationKeyUpdatedPathConst    = "publish.updated_path"
	configurationKeyBuildIDConstant     = "publish.build_id"
	configurationKeyTitleConstant       = "publish.title"
	configurationKeyTargetBranchConst   = "publish.target_branch"
	configurationKeyPipelineConstant    = "publish.pipeline"
	configurationKeyFilePrefixConstant  = "publish.updated_file_prefix"
	configurationKeyMarkerConstant      = "publish.exclusions_marker"
	configurationKeyBranchPrefixConst   = "publish.branch_prefix"
	configurationKeyBuildLinkConstant   = "publish.build_link_prefix"
	configurationKeyUpdateBodyConstant  = "publish.update_existing_body"
	configurationKeyParallelConstant    = "publish.max_parallel_uploads"
	configurationKeyStepSummaryConstant = "publish.step_summary"
	configurationKeyAPIBaseURLConstant  = "publish.api.base_url"
	configurationKeyAPITimeoutConstant  = "publish.api.request_timeout"
	configurationKeyLocalPathConstant   = "publish.local.repository_path"
	configurationKeyLocalLedgerConstant = "publish.local.pull_request_ledger"
	configurationKeyLocalAuthorConstant = "publish.local.author_name"
	configurationKeyLocalEmailConstant  = "publish.local.author_email"
)

// Backend selects the gitdata.Repository implementation.
type Backend string

// Supported backends.
const (
	BackendGitHubCLI Backend = Backend("gh")
	BackendGitHubAPI Backend = Backend("api")
	BackendLocal     Backend = Backend("local")
)

var supportedBackends = []Backend{BackendGitHubCLI, BackendGitHubAPI, BackendLocal}

// ParseBackend resolves a backend name case-insensitively.
func ParseBackend(value string) (Backend, error) {
	trimmedValue := strings.TrimSpace(value)
	matchedBackend, found := lo.Find(supportedBackends, func(candidate Backend) bool {
		return strings.EqualFold(trimmedValue, string(candidate))
	})
	if !found {
		return "", baseline.ConfigError{Field: backendFieldConstant, Cause: fmt.Errorf(unsupportedBackendTemplateConstant, baseline.ErrInvalidOperation, value)}
	}
	return matchedBackend, nil
}

var publishConfigurationHomeDirectoryExpander = pathutils.NewHomeExpander()

// Configuration captures the publish command settings.
type Configuration struct {
	Repository         string               `mapstructure:"repository"`
	Backend            string               `mapstructure:"backend"`
	OriginalPath       string               `mapstructure:"original_path"`
	UpdatedPath        string               `mapstructure:"updated_path"`
	BuildID            int                  `mapstructure:"build_id"`
	Title              string               `mapstructure:"title"`
	TargetBranch       string               `mapstructure:"target_branch"`
	Pipeline           string               `mapstructure:"pipeline"`
	UpdatedFilePrefix  string               `mapstructure:"updated_file_prefix"`
	ExclusionsMarker   string               `mapstructure:"exclusions_marker"`
	BranchPrefix       string               `mapstructure:"branch_prefix"`
	BuildLinkPrefix    string               `mapstructure:"build_link_prefix"`
	UpdateExistingBody bool                 `mapstructure:"update_existing_body"`
	MaxParallelUploads int                  `mapstructure:"max_parallel_uploads"`
	StepSummary        bool                 `mapstructure:"step_summary"`
	API                APIConfiguration     `mapstructure:"api"`
	Local              LocalBackendSettings `mapstructure:"local"`
}

// APIConfiguration configures the REST backend.
type APIConfiguration struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LocalBackendSettings configures the go-git backend.
type LocalBackendSettings struct {
	RepositoryPath    string `mapstructure:"repository_path"`
	PullRequestLedger string `mapstructure:"pull_request_ledger"`
	AuthorName        string `mapstructure:"author_name"`
	AuthorEmail       string `mapstructure:"author_email"`
}

// DefaultConfiguration supplies baseline values for the publish command.
func DefaultConfiguration() Configuration {
	return Configuration{
		Backend:            string(BackendGitHubCLI),
		TargetBranch:       DefaultTargetBranchConstant,
		Pipeline:           string(baseline.PipelineKindSdk),
		UpdatedFilePrefix:  baseline.DefaultUpdatedFilePrefixConstant,
		ExclusionsMarker:   baseline.DefaultExclusionsMarkerConstant,
		BranchPrefix:       DefaultBranchPrefixConstant,
		BuildLinkPrefix:    DefaultBuildLinkPrefixConstant,
		UpdateExistingBody: true,
		MaxParallelUploads: defaultParallelUploadsConstant,
		API:                APIConfiguration{RequestTimeout: defaultRequestTimeoutConstant},
	}
}

// DefaultConfigurationValues exposes the defaults as Viper keys.
func DefaultConfigurationValues() map[string]any {
	defaults := DefaultConfiguration()
	return map[string]any{
		configurationKeyRepositoryConstant:  defaults.Repository,
		configurationKeyBackendConstant:     defaults.Backend,
		configurationKeyOriginalPathConst:   defaults.OriginalPath,
		configurationKeyUpdatedPathConst:    defaults.UpdatedPath,
		configurationKeyBuildIDConstant:     defaults.BuildID,
		configurationKeyTitleConstant:       defaults.Title,
		configurationKeyTargetBranchConst:   defaults.TargetBranch,
		configurationKeyPipelineConstant:    defaults.Pipeline,
		configurationKeyFilePrefixConstant:  defaults.UpdatedFilePrefix,
		configurationKeyMarkerConstant:      defaults.ExclusionsMarker,
		configurationKeyBranchPrefixConst:   defaults.BranchPrefix,
		configurationKeyBuildLinkConstant:   defaults.BuildLinkPrefix,
		configurationKeyUpdateBodyConstant:  defaults.UpdateExistingBody,
		configurationKeyParallelConstant:    defaults.MaxParallelUploads,
		configurationKeyStepSummaryConstant: defaults.StepSummary,
		configurationKeyAPIBaseURLConstant:  defaults.API.BaseURL,
		configurationKeyAPITimeoutConstant:  defaults.API.RequestTimeout,
		configurationKeyLocalPathConstant:   defaults.Local.RepositoryPath,
		configurationKeyLocalLedgerConstant: defaults.Local.PullRequestLedger,
		configurationKeyLocalAuthorConstant: defaults.Local.AuthorName,
		configurationKeyLocalEmailConstant:  defaults.Local.AuthorEmail,
	}
}

// Sanitize trims values and expands home-relative local paths.
func (configuration Configuration) Sanitize() Configuration {
	sanitized := configuration
	for _, value := range []*string{
		&sanitized.Repository,
		&sanitized.Backend,
		&sanitized.OriginalPath,
		&sanitized.UpdatedPath,
		&sanitized.Title,
		&sanitized.TargetBranch,
		&sanitized.Pipeline,
		&sanitized.UpdatedFilePrefix,
		&sanitized.ExclusionsMarker,
		&sanitized.BranchPrefix,
		&sanitized.BuildLinkPrefix,
		&sanitized.API.BaseURL,
		&sanitized.Local.RepositoryPath,
		&sanitized.Local.PullRequestLedger,
		&sanitized.Local.AuthorName,
		&sanitized.Local.AuthorEmail,
	} {
		*value = strings.TrimSpace(*value)
	}
	publishConfigurationHomeDirectoryExpander.ExpandAll(
		&sanitized.UpdatedPath,
		&sanitized.Local.RepositoryPath,
		&sanitized.Local.PullRequestLedger,
	)
	sanitized.OriginalPath = baseline.NormalizeTreePath(sanitized.OriginalPath)
	if sanitized.MaxParallelUploads < defaultParallelUploadsConstant {
		sanitized.MaxParallelUploads = defaultParallelUploadsConstant
	}
	return sanitized
}

// Options are the validated inputs of a single publication.
type Options struct {
	OriginalPath       string
	UpdatedPath        string
	BuildID            int
	Title              string
	TargetBranch       string
	Pipeline           baseline.PipelineKind
	UpdatedFilePrefix  string
	ExclusionsMarker   string
	BranchPrefix       string
	BuildLinkPrefix    string
	UpdateExistingBody bool
	MaxParallelUploads int
}

// Options validates the configuration and converts it into publication options.
// Every invalid field is reported.
func (configuration Configuration) Options() (Options, error) {
	sanitized := configuration.Sanitize()

	var validationErrors []error
	requireField := func(fieldName string, value string) {
		if len(value) == 0 {
			validationErrors = append(validationErrors, baseline.ConfigError{Field: fieldName, Cause: errors.New(requiredValueMessageConstant)})
		}
	}
	requireField(originalPathFieldConstant, sanitized.OriginalPath)
	requireField(updatedPathFieldConstant, sanitized.UpdatedPath)
	requireField(titleFieldConstant, sanitized.Title)
	requireField(targetBranchFieldConstant, sanitized.TargetBranch)
	if sanitized.BuildID <= 0 {
		validationErrors = append(validationErrors, baseline.ConfigError{Field: buildIDFieldConstant, Cause: errors.New(positiveValueMessageConstant)})
	}

	pipelineKind, pipelineError := baseline.ParsePipelineKind(sanitized.Pipeline)
	if pipelineError != nil {
		validationErrors = append(validationErrors, pipelineError)
	}

	if joinedError := errors.Join(validationErrors...); joinedError != nil {
		return Options{}, joinedError
	}

	return Options{
		OriginalPath:       sanitized.OriginalPath,
		UpdatedPath:        sanitized.UpdatedPath,
		BuildID:            sanitized.BuildID,
		Title:              sanitized.Title,
		TargetBranch:       sanitized.TargetBranch,
		Pipeline:           pipelineKind,
		UpdatedFilePrefix:  sanitized.UpdatedFilePrefix,
		ExclusionsMarker:   sanitized.ExclusionsMarker,
		BranchPrefix:       sanitized.BranchPrefix,
		BuildLinkPrefix:    sanitized.BuildLinkPrefix,
		UpdateExistingBody: sanitized.UpdateExistingBody,
		MaxParallelUploads: sanitized.MaxParallelUploads,
	}, nil
}
