package publisher_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/prbaseline/internal/baseline"
	"github.com/temirov/prbaseline/internal/publisher"
)

const (
	validConfigurationCaseConstant   = "valid configuration"
	missingFieldsCaseConstant        = "missing required fields"
	invalidPipelineCaseConstant      = "invalid pipeline"
	nonPositiveBuildCaseConstant     = "non positive build id"
	testOriginalPathConstant         = "src/SourceBuild/content/test/baselines"
	testUpdatedPathConstant          = "/results"
	testTitleConstant                = "Update baselines"
	testBuildIDConstant              = 42
	testHomeRelativeLedgerConstant   = "~/ledger.yaml"
	testLedgerFileNameConstant       = "ledger.yaml"
	testBackendMixedCaseConstant     = " API "
	testUnsupportedBackendConstant   = "svn"
	testUnsupportedPipelineConstant  = "Docs"
	testLicensePipelineValueConstant = "license"
)

func validConfiguration() publisher.Configuration {
	configuration := publisher.DefaultConfiguration()
	configuration.OriginalPath = "/" + testOriginalPathConstant + "/"
	configuration.UpdatedPath = testUpdatedPathConstant
	configuration.BuildID = testBuildIDConstant
	configuration.Title = testTitleConstant
	return configuration
}

func TestDefaultConfiguration(testInstance *testing.T) {
	configuration := publisher.DefaultConfiguration()
	require.Equal(testInstance, string(publisher.BackendGitHubCLI), configuration.Backend)
	require.Equal(testInstance, baseline.DefaultUpdatedFilePrefixConstant, configuration.UpdatedFilePrefix)
	require.Equal(testInstance, baseline.DefaultExclusionsMarkerConstant, configuration.ExclusionsMarker)
	require.Equal(testInstance, publisher.DefaultBranchPrefixConstant, configuration.BranchPrefix)
	require.Equal(testInstance, publisher.DefaultBuildLinkPrefixConstant, configuration.BuildLinkPrefix)
	require.True(testInstance, configuration.UpdateExistingBody)
	require.Equal(testInstance, 1, configuration.MaxParallelUploads)

	defaultValues := publisher.DefaultConfigurationValues()
	require.Equal(testInstance, publisher.DefaultTargetBranchConstant, defaultValues["publish.target_branch"])
	require.Equal(testInstance, true, defaultValues["publish.update_existing_body"])
	require.Contains(testInstance, defaultValues, "publish.local.pull_request_ledger")
}

func TestConfigurationSanitize(testInstance *testing.T) {
	homeDirectory, homeError := os.UserHomeDir()
	require.NoError(testInstance, homeError)

	configuration := validConfiguration()
	configuration.Title = "  " + testTitleConstant + "\t"
	configuration.Local.PullRequestLedger = testHomeRelativeLedgerConstant
	configuration.MaxParallelUploads = 0

	sanitized := configuration.Sanitize()
	require.Equal(testInstance, testTitleConstant, sanitized.Title)
	require.Equal(testInstance, testOriginalPathConstant, sanitized.OriginalPath)
	require.Equal(testInstance, filepath.Join(homeDirectory, testLedgerFileNameConstant), sanitized.Local.PullRequestLedger)
	require.Equal(testInstance, 1, sanitized.MaxParallelUploads)
}

func TestConfigurationOptions(testInstance *testing.T) {
	testCases := []struct {
		name           string
		mutate         func(*publisher.Configuration)
		expectedFields []string
		expectedKind   baseline.PipelineKind
	}{
		{
			name:         validConfigurationCaseConstant,
			mutate:       func(configuration *publisher.Configuration) { configuration.Pipeline = testLicensePipelineValueConstant },
			expectedKind: baseline.PipelineKindLicense,
		},
		{
			name: missingFieldsCaseConstant,
			mutate: func(configuration *publisher.Configuration) {
				configuration.OriginalPath = " / "
				configuration.UpdatedPath = ""
				configuration.Title = " "
			},
			expectedFields: []string{"original_path", "updated_path", "title"},
		},
		{
			name:           invalidPipelineCaseConstant,
			mutate:         func(configuration *publisher.Configuration) { configuration.Pipeline = testUnsupportedPipelineConstant },
			expectedFields: []string{"pipeline"},
		},
		{
			name:           nonPositiveBuildCaseConstant,
			mutate:         func(configuration *publisher.Configuration) { configuration.BuildID = 0 },
			expectedFields: []string{"build_id"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			configuration := validConfiguration()
			testCase.mutate(&configuration)

			options, optionsError := configuration.Options()
			if len(testCase.expectedFields) == 0 {
				require.NoError(subTest, optionsError)
				require.Equal(subTest, testOriginalPathConstant, options.OriginalPath)
				require.Equal(subTest, testBuildIDConstant, options.BuildID)
				require.Equal(subTest, testCase.expectedKind, options.Pipeline)
				require.True(subTest, options.UpdateExistingBody)
				return
			}

			require.Error(subTest, optionsError)
			for _, expectedField := range testCase.expectedFields {
				require.Contains(subTest, optionsError.Error(), expectedField)
			}
			var configError baseline.ConfigError
			require.ErrorAs(subTest, optionsError, &configError)
		})
	}
}

func TestConfigurationOptionsRejectsPipelineAsInvalidOperation(testInstance *testing.T) {
	configuration := validConfiguration()
	configuration.Pipeline = testUnsupportedPipelineConstant

	_, optionsError := configuration.Options()
	require.True(testInstance, errors.Is(optionsError, baseline.ErrInvalidOperation))
}

func TestParseBackend(testInstance *testing.T) {
	backend, parseError := publisher.ParseBackend(testBackendMixedCaseConstant)
	require.NoError(testInstance, parseError)
	require.Equal(testInstance, publisher.BackendGitHubAPI, backend)

	_, unsupportedError := publisher.ParseBackend(testUnsupportedBackendConstant)
	require.ErrorIs(testInstance, unsupportedError, baseline.ErrInvalidOperation)
	var configError baseline.ConfigError
	require.ErrorAs(testInstance, unsupportedError, &configError)
	require.Equal(testInstance, "backend", configError.Field)
}
