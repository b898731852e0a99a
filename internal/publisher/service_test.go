package publisher_test

import (
	"context"
	"errors"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/prbaseline/internal/baseline"
	"github.com/temirov/prbaseline/internal/gitdata"
	"github.com/temirov/prbaseline/internal/localrepo"
	"github.com/temirov/prbaseline/internal/publisher"
)

const (
	testMainBranchConstant         = "main"
	testMountPathConstant          = "eng/baselines"
	testReadmePathConstant         = "README.md"
	testExclusionsPathConstant     = "eng/baselines/SdkExclusions.txt"
	testKeptBaselinePathConstant   = "eng/baselines/baselines/Keep.diff"
	testNewBaselinePathConstant    = "eng/baselines/baselines/New.diff"
	testLicensePathConstant        = "eng/baselines/baselines/licenses/Foo.json"
	testExpectedBranchConstant     = "pr-baseline-20240102030405"
	testOtherTitleConstant         = "Another baseline refresh"
	testPullRequestURLConstant     = "memory/pull/1"
	testCreatedMessageConstant     = "Created pull request #1. URL: memory/pull/1"
	testUpdatedMessageConstant     = "Updated existing pull request #1. URL: memory/pull/1"
	testNoChangesMessageConstant   = "No changes to commit. Skipping PR creation."
	testFailureMessageConstant     = "publication failed"
	testCommitMessageConstant      = "Update baselines for build https://dev.azure.com/dnceng/internal/_build/results?buildId=42"
	testFingerprintCommentConstant = "<!-- baseline-fingerprint: "
	testLicenseSentinelConstant    = "{\n  \"files\": []\n}"
)

var testPublicationTime = time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)

// recordingRepository wraps a real repository to record commits and inject failures.
type recordingRepository struct {
	gitdata.Repository
	commitRequests         []gitdata.CommitRequest
	truncateTree           bool
	createPullRequestError error
	createBranchCalls      int
}

func (repository *recordingRepository) GetTreeRecursive(executionContext context.Context, branch string) (gitdata.TreeSnapshot, error) {
	snapshot, treeError := repository.Repository.GetTreeRecursive(executionContext, branch)
	snapshot.Truncated = repository.truncateTree
	return snapshot, treeError
}

func (repository *recordingRepository) CreateCommit(executionContext context.Context, request gitdata.CommitRequest) (string, error) {
	repository.commitRequests = append(repository.commitRequests, request)
	return repository.Repository.CreateCommit(executionContext, request)
}

func (repository *recordingRepository) CreateBranch(executionContext context.Context, branch string, commitSHA string) error {
	repository.createBranchCalls++
	return repository.Repository.CreateBranch(executionContext, branch, commitSHA)
}

func (repository *recordingRepository) CreatePullRequest(executionContext context.Context, request gitdata.NewPullRequest) (gitdata.PullRequest, error) {
	if repository.createPullRequestError != nil {
		return gitdata.PullRequest{}, repository.createPullRequestError
	}
	return repository.Repository.CreatePullRequest(executionContext, request)
}

type recordingReporter struct {
	results []publisher.Result
	failure error
}

func (reporter *recordingReporter) Report(result publisher.Result) error {
	reporter.results = append(reporter.results, result)
	return reporter.failure
}

type publicationFixture struct {
	local      *localrepo.Repository
	repository *recordingRepository
	fileSystem afero.Fs
	reporter   *recordingReporter
	logs       *observer.ObservedLogs
	service    *publisher.Service
}

func newPublicationFixture(testInstance *testing.T, remoteFiles map[string]string, localFiles map[string]string) *publicationFixture {
	testInstance.Helper()

	local, openError := localrepo.Open(localrepo.Options{Clock: func() time.Time { return testPublicationTime }})
	require.NoError(testInstance, openError)
	seedBranch(testInstance, local, testMainBranchConstant, remoteFiles)

	fileSystem := afero.NewMemMapFs()
	require.NoError(testInstance, fileSystem.MkdirAll(testUpdatedPathConstant, 0o755))
	for filePath, content := range localFiles {
		require.NoError(testInstance, afero.WriteFile(fileSystem, path.Join(testUpdatedPathConstant, filePath), []byte(content), 0o644))
	}

	observedCore, observedLogs := observer.New(zapcore.DebugLevel)
	fixture := &publicationFixture{
		local:      local,
		repository: &recordingRepository{Repository: local},
		fileSystem: fileSystem,
		reporter:   &recordingReporter{},
		logs:       observedLogs,
	}

	service, serviceError := publisher.NewService(publisher.ServiceDependencies{
		Logger:     zap.New(observedCore),
		Repository: fixture.repository,
		FileSystem: fileSystem,
		Clock:      func() time.Time { return testPublicationTime },
		Reporter:   fixture.reporter,
	})
	require.NoError(testInstance, serviceError)
	fixture.service = service
	return fixture
}

func seedBranch(testInstance *testing.T, repository *localrepo.Repository, branch string, files map[string]string) string {
	testInstance.Helper()
	entries := baseline.NewEntrySet(nil)
	for filePath, content := range files {
		entries = entries.WithContent(filePath, []byte(content))
	}
	builder := baseline.NewTreeBuilder(repository, 1, zap.NewNop())
	tree, buildError := builder.Build(context.Background(), entries, "")
	require.NoError(testInstance, buildError)
	tree, graftError := builder.Graft(context.Background(), gitdata.TreeSnapshot{}, tree, "")
	require.NoError(testInstance, graftError)

	commitSHA, commitError := repository.CreateCommit(context.Background(), gitdata.CommitRequest{Message: "seed", TreeSHA: tree.SHA})
	require.NoError(testInstance, commitError)
	require.NoError(testInstance, repository.CreateBranch(context.Background(), branch, commitSHA))
	return commitSHA
}

func flattenBranch(testInstance *testing.T, repository gitdata.Repository, branch string) map[string]string {
	testInstance.Helper()
	snapshot, treeError := repository.GetTreeRecursive(context.Background(), branch)
	require.NoError(testInstance, treeError)
	files := map[string]string{}
	for _, entry := range snapshot.Entries {
		if entry.IsTree() {
			continue
		}
		content, readError := repository.ReadBlob(context.Background(), entry.SHA)
		require.NoError(testInstance, readError)
		files[entry.Path] = string(content)
	}
	return files
}

func blobSHA(testInstance *testing.T, repository gitdata.Repository, branch string, filePath string) string {
	testInstance.Helper()
	snapshot, treeError := repository.GetTreeRecursive(context.Background(), branch)
	require.NoError(testInstance, treeError)
	for _, entry := range snapshot.Entries {
		if entry.Path == filePath {
			return entry.SHA
		}
	}
	testInstance.Fatalf("entry %s not found on %s", filePath, branch)
	return ""
}

func sdkOptions(buildID int, title string) publisher.Options {
	return publisher.Options{
		OriginalPath:       testMountPathConstant,
		UpdatedPath:        testUpdatedPathConstant,
		BuildID:            buildID,
		Title:              title,
		TargetBranch:       testMainBranchConstant,
		Pipeline:           baseline.PipelineKindSdk,
		UpdatedFilePrefix:  baseline.DefaultUpdatedFilePrefixConstant,
		ExclusionsMarker:   baseline.DefaultExclusionsMarkerConstant,
		BranchPrefix:       publisher.DefaultBranchPrefixConstant,
		BuildLinkPrefix:    publisher.DefaultBuildLinkPrefixConstant,
		UpdateExistingBody: true,
		MaxParallelUploads: 2,
	}
}

func defaultRemoteFiles() map[string]string {
	return map[string]string{
		testReadmePathConstant:       "readme\n",
		testExclusionsPathConstant:   "p\nq\nr\n",
		testKeptBaselinePathConstant: "keep\n",
	}
}

func defaultLocalFiles() map[string]string {
	return map[string]string{
		"UpdatedSdkExclusions.txt":           "p\n",
		"linux/UpdatedSdkExclusions.x64.txt": "q\n",
		"UpdatedNew.diff":                    "new\n",
	}
}

func TestNewServiceRequiresCollaborators(testInstance *testing.T) {
	_, repositoryError := publisher.NewService(publisher.ServiceDependencies{FileSystem: afero.NewMemMapFs()})
	require.ErrorIs(testInstance, repositoryError, publisher.ErrRepositoryNotConfigured)

	local, openError := localrepo.Open(localrepo.Options{})
	require.NoError(testInstance, openError)
	_, fileSystemError := publisher.NewService(publisher.ServiceDependencies{Repository: local})
	require.ErrorIs(testInstance, fileSystemError, publisher.ErrFileSystemNotConfigured)
}

func TestPublishCreatesPullRequest(testInstance *testing.T) {
	fixture := newPublicationFixture(testInstance, defaultRemoteFiles(), defaultLocalFiles())
	readmeSHA := blobSHA(testInstance, fixture.local, testMainBranchConstant, testReadmePathConstant)

	result, publishError := fixture.service.Publish(context.Background(), sdkOptions(testBuildIDConstant, testTitleConstant))
	require.NoError(testInstance, publishError)

	require.Equal(testInstance, publisher.OutcomeCreated, result.Outcome)
	require.Equal(testInstance, testExpectedBranchConstant, result.BranchName)
	require.Equal(testInstance, 1, result.PullRequest.Number)
	require.Equal(testInstance, testPullRequestURLConstant, result.PullRequest.URL)
	require.Equal(testInstance, 2, result.ChangeKeys)
	require.Equal(testInstance, 3, result.ChangedFiles)
	require.Equal(testInstance, 2, result.Reconciled)
	require.Len(testInstance, result.Fingerprint, 16)

	require.Equal(testInstance, map[string]string{
		testReadmePathConstant:       "readme\n",
		testExclusionsPathConstant:   "p\nq\n",
		testKeptBaselinePathConstant: "keep\n",
		testNewBaselinePathConstant:  "new\n",
	}, flattenBranch(testInstance, fixture.local, testExpectedBranchConstant))
	require.Equal(testInstance, readmeSHA, blobSHA(testInstance, fixture.local, testExpectedBranchConstant, testReadmePathConstant))

	mainHead, headError := fixture.local.GetBranchHead(context.Background(), testMainBranchConstant)
	require.NoError(testInstance, headError)
	require.Len(testInstance, fixture.repository.commitRequests, 1)
	require.Equal(testInstance, testCommitMessageConstant, fixture.repository.commitRequests[0].Message)
	require.Equal(testInstance, mainHead, fixture.repository.commitRequests[0].ParentSHA)

	pullRequests, listError := fixture.local.ListOpenPullRequests(context.Background(), testMainBranchConstant)
	require.NoError(testInstance, listError)
	require.Len(testInstance, pullRequests, 1)
	require.Equal(testInstance, testTitleConstant, pullRequests[0].Title)
	require.Equal(testInstance, testExpectedBranchConstant, pullRequests[0].HeadBranch)

	body, bodyFound := fixture.local.Ledger().Body(1)
	require.True(testInstance, bodyFound)
	require.True(testInstance, strings.HasPrefix(body, "This PR was created by the PR baseline publisher tool for build 42. \n\nThe updated test results can be found at "+publisher.DefaultBuildLinkPrefixConstant+"42"))
	require.Contains(testInstance, body, testFingerprintCommentConstant+result.Fingerprint+" -->")

	require.Equal(testInstance, 1, fixture.logs.FilterMessage(testCreatedMessageConstant).Len())
	require.Zero(testInstance, fixture.logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	require.Equal(testInstance, []publisher.Result{result}, fixture.reporter.results)
}

func TestPublishUpdatesExistingPullRequest(testInstance *testing.T) {
	fixture := newPublicationFixture(testInstance, defaultRemoteFiles(), defaultLocalFiles())
	first, firstError := fixture.service.Publish(context.Background(), sdkOptions(testBuildIDConstant, testTitleConstant))
	require.NoError(testInstance, firstError)

	second, secondError := fixture.service.Publish(context.Background(), sdkOptions(43, testTitleConstant))
	require.NoError(testInstance, secondError)

	require.Equal(testInstance, publisher.OutcomeUpdated, second.Outcome)
	require.Equal(testInstance, first.PullRequest.Number, second.PullRequest.Number)
	require.Equal(testInstance, first.TreeSHA, second.TreeSHA)
	require.Equal(testInstance, first.Fingerprint, second.Fingerprint)
	require.Equal(testInstance, first.CommitSHA, fixture.repository.commitRequests[1].ParentSHA)
	require.Equal(testInstance, 1, fixture.repository.createBranchCalls)

	branchHead, headError := fixture.local.GetBranchHead(context.Background(), testExpectedBranchConstant)
	require.NoError(testInstance, headError)
	require.Equal(testInstance, second.CommitSHA, branchHead)

	body, _ := fixture.local.Ledger().Body(first.PullRequest.Number)
	require.Contains(testInstance, body, "for build 43.")
	require.Equal(testInstance, 1, fixture.logs.FilterMessage(testUpdatedMessageConstant).Len())
}

func TestPublishKeepsBodyWhenBodyUpdatesAreDisabled(testInstance *testing.T) {
	fixture := newPublicationFixture(testInstance, defaultRemoteFiles(), defaultLocalFiles())
	_, firstError := fixture.service.Publish(context.Background(), sdkOptions(testBuildIDConstant, testTitleConstant))
	require.NoError(testInstance, firstError)

	options := sdkOptions(43, testTitleConstant)
	options.UpdateExistingBody = false
	result, secondError := fixture.service.Publish(context.Background(), options)
	require.NoError(testInstance, secondError)
	require.Equal(testInstance, publisher.OutcomeUpdated, result.Outcome)

	body, _ := fixture.local.Ledger().Body(result.PullRequest.Number)
	require.Contains(testInstance, body, "for build 42.")
}

func TestPublishIsIdempotentAfterMerge(testInstance *testing.T) {
	fixture := newPublicationFixture(testInstance, defaultRemoteFiles(), defaultLocalFiles())
	first, firstError := fixture.service.Publish(context.Background(), sdkOptions(testBuildIDConstant, testTitleConstant))
	require.NoError(testInstance, firstError)
	require.NoError(testInstance, fixture.local.UpdateBranch(context.Background(), testMainBranchConstant, first.CommitSHA))

	second, secondError := fixture.service.Publish(context.Background(), sdkOptions(testBuildIDConstant, testOtherTitleConstant))
	require.NoError(testInstance, secondError)

	require.Equal(testInstance, publisher.OutcomeNoChanges, second.Outcome)
	require.Equal(testInstance, first.TreeSHA, second.TreeSHA)
	require.Zero(testInstance, second.PullRequest.Number)
	require.Equal(testInstance, 1, fixture.repository.createBranchCalls)
	require.Equal(testInstance, 1, fixture.logs.FilterMessage(testNoChangesMessageConstant).Len())

	pullRequests, listError := fixture.local.ListOpenPullRequests(context.Background(), testMainBranchConstant)
	require.NoError(testInstance, listError)
	require.Len(testInstance, pullRequests, 1)
}

func TestPublishWithoutUpdatedFilesReportsNoChanges(testInstance *testing.T) {
	fixture := newPublicationFixture(testInstance, defaultRemoteFiles(), nil)

	result, publishError := fixture.service.Publish(context.Background(), sdkOptions(testBuildIDConstant, testTitleConstant))
	require.NoError(testInstance, publishError)
	require.Equal(testInstance, publisher.OutcomeNoChanges, result.Outcome)
	require.Zero(testInstance, result.ChangeKeys)
	require.Zero(testInstance, result.UploadedBlobs)
}

func TestPublishLicenseSentinelRemovesBaseline(testInstance *testing.T) {
	remoteFiles := defaultRemoteFiles()
	remoteFiles[testLicensePathConstant] = "{\n  \"files\": [\"a\"]\n}"
	fixture := newPublicationFixture(testInstance, remoteFiles, map[string]string{
		"UpdatedFoo.json":    testLicenseSentinelConstant,
		"UpdatedAbsent.json": testLicenseSentinelConstant,
	})

	options := sdkOptions(testBuildIDConstant, testTitleConstant)
	options.Pipeline = baseline.PipelineKindLicense
	result, publishError := fixture.service.Publish(context.Background(), options)
	require.NoError(testInstance, publishError)
	require.Equal(testInstance, publisher.OutcomeCreated, result.Outcome)

	require.Equal(testInstance, map[string]string{
		testReadmePathConstant:       "readme\n",
		testExclusionsPathConstant:   "p\nq\nr\n",
		testKeptBaselinePathConstant: "keep\n",
	}, flattenBranch(testInstance, fixture.local, result.BranchName))
}

func TestPublishFailures(testInstance *testing.T) {
	createFailure := errors.New("pull request service unavailable")

	testCases := []struct {
		name            string
		mutate          func(*publicationFixture, *publisher.Options)
		expectedStage   publisher.Stage
		expectedSubject string
		expectedCause   error
	}{
		{
			name:            "missing updated directory",
			mutate:          func(_ *publicationFixture, options *publisher.Options) { options.UpdatedPath = "/missing" },
			expectedStage:   publisher.StageCollecting,
			expectedSubject: "/missing",
		},
		{
			name:            "truncated tree listing",
			mutate:          func(fixture *publicationFixture, _ *publisher.Options) { fixture.repository.truncateTree = true },
			expectedStage:   publisher.StageCollecting,
			expectedSubject: testMainBranchConstant,
			expectedCause:   publisher.ErrTruncatedTree,
		},
		{
			name:            "unknown target branch",
			mutate:          func(_ *publicationFixture, options *publisher.Options) { options.TargetBranch = "release" },
			expectedStage:   publisher.StageCollecting,
			expectedSubject: "release",
		},
		{
			name: "pull request creation failure",
			mutate: func(fixture *publicationFixture, _ *publisher.Options) {
				fixture.repository.createPullRequestError = createFailure
			},
			expectedStage:   publisher.StagePullRequestWrite,
			expectedSubject: testExpectedBranchConstant,
			expectedCause:   createFailure,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			fixture := newPublicationFixture(subTest, defaultRemoteFiles(), defaultLocalFiles())
			options := sdkOptions(testBuildIDConstant, testTitleConstant)
			testCase.mutate(fixture, &options)

			_, publishError := fixture.service.Publish(context.Background(), options)
			require.Error(subTest, publishError)
			if testCase.expectedCause != nil {
				require.ErrorIs(subTest, publishError, testCase.expectedCause)
			}

			errorLogs := fixture.logs.FilterLevelExact(zapcore.ErrorLevel).All()
			require.Len(subTest, errorLogs, 1)
			require.Equal(subTest, testFailureMessageConstant, errorLogs[0].Message)
			contextMap := errorLogs[0].ContextMap()
			require.Equal(subTest, string(testCase.expectedStage), contextMap["stage"])
			require.Equal(subTest, testCase.expectedSubject, contextMap["subject"])
			require.Empty(subTest, fixture.reporter.results)
		})
	}
}

func TestPublishIgnoresReporterFailure(testInstance *testing.T) {
	fixture := newPublicationFixture(testInstance, defaultRemoteFiles(), defaultLocalFiles())
	fixture.reporter.failure = errors.New("summary file not writable")

	_, publishError := fixture.service.Publish(context.Background(), sdkOptions(testBuildIDConstant, testTitleConstant))
	require.NoError(testInstance, publishError)
	require.Equal(testInstance, 1, fixture.logs.FilterLevelExact(zapcore.WarnLevel).Len())
}
