package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/temirov/prbaseline/internal/baseline"
	"github.com/temirov/prbaseline/internal/gitdata"
)

const (
	repositoryMissingMessageConstant   = "remote repository not configured"
	fileSystemMissingMessageConstant   = "file system not configured"
	truncatedTreeMessageConstant       = "tree listing was truncated"
	commitMessageTemplateConstant      = "Update baselines for build %s%d"
	pullRequestBodyTemplateConstant    = "This PR was created by the PR baseline publisher tool for build %d. \n\nThe updated test results can be found at %s%d\n\n<!-- baseline-fingerprint: %s -->"
	branchTimestampLayoutConstant      = "20060102150405"
	updatedPullRequestTemplateConstant = "Updated existing pull request #%d. URL: %s"
	createdPullRequestTemplateConstant = "Created pull request #%d. URL: %s"
	noChangesMessageConstant           = "No changes to commit. Skipping PR creation."
	noUpdatedFilesMessageConstant      = "no updated files found"
	stageStartedMessageConstant        = "stage started"
	publicationFailedMessageConstant   = "publication failed"
	reconciledMessageConstant          = "reconciled updated files"
	treeBuiltMessageConstant           = "built baseline tree"
	commitCreatedMessageConstant       = "created commit"
	reportFailedMessageConstant        = "unable to report publication outcome"
	getTreeOperationConstant           = "get tree"
	getBranchHeadOperationConstant     = "get branch head"
	createCommitOperationConstant      = "create commit"
	listPullRequestsOperationConstant  = "list pull requests"
	updateBranchOperationConstant      = "update branch"
	updatePullRequestOperationConstant = "update pull request"
	compareCommitsOperationConstant    = "compare commits"
	createBranchOperationConstant      = "create branch"
	createPullRequestOperationConstant = "create pull request"
	pullRequestSubjectTemplateConstant = "#%d"
	logFieldStageConstant              = "stage"
	logFieldSubjectConstant            = "subject"
	logFieldPathConstant               = "path"
	logFieldBranchConstant             = "branch"
	logFieldChangeKeysConstant         = "change_keys"
	logFieldFilesConstant              = "files"
	logFieldResultsConstant            = "results"
	logFieldFingerprintConstant        = "fingerprint"
	logFieldTreeConstant               = "tree"
	logFieldCommitConstant             = "commit"
	logFieldParentConstant             = "parent"
	logFieldCreatedTreesConstant       = "created_trees"
	logFieldUploadedBlobsConstant      = "uploaded_blobs"
	logFieldPullRequestConstant        = "pull_request"
	logFieldOutcomeConstant            = "outcome"
)

// Stage names a step of a publication run.
type Stage string

// Publication stages in execution order.
const (
	StageCollecting       Stage = Stage("Collecting")
	StageReconciling      Stage = Stage("Reconciling")
	StageBuilding         Stage = Stage("Building")
	StageGrafting         Stage = Stage("Grafting")
	StagePullRequestQuery Stage = Stage("PrLookup")
	StageCommitting       Stage = Stage("Committing")
	StagePullRequestWrite Stage = Stage("PrCreateOrUpdate")
	StageReporting        Stage = Stage("Reporting")
)

// Outcome is the terminal state of a successful publication.
type Outcome string

// Supported outcomes.
const (
	OutcomeCreated   Outcome = Outcome("created")
	OutcomeUpdated   Outcome = Outcome("updated")
	OutcomeNoChanges Outcome = Outcome("no_changes")
)

// Clock returns the current time.
type Clock func() time.Time

// Reporter receives the result of a successful publication.
type Reporter interface {
	Report(result Result) error
}

// ServiceDependencies describes the collaborators of a publication.
type ServiceDependencies struct {
	Logger     *zap.Logger
	Repository gitdata.Repository
	FileSystem afero.Fs
	Clock      Clock
	Reporter   Reporter
}

// Result captures the observable outcome of a publication.
type Result struct {
	Outcome       Outcome
	PullRequest   gitdata.PullRequest
	BranchName    string
	CommitSHA     string
	TreeSHA       string
	Fingerprint   string
	ChangeKeys    int
	ChangedFiles  int
	Reconciled    int
	CreatedTrees  int
	UploadedBlobs int
	UploadedBytes int
}

// Service publishes updated baseline files as a pull request.
type Service struct {
	logger     *zap.Logger
	repository gitdata.Repository
	fileSystem afero.Fs
	clock      Clock
	reporter   Reporter
}

var (
	// ErrRepositoryNotConfigured indicates the service has no remote repository.
	ErrRepositoryNotConfigured = errors.New(repositoryMissingMessageConstant)
	// ErrFileSystemNotConfigured indicates the service has no local file system.
	ErrFileSystemNotConfigured = errors.New(fileSystemMissingMessageConstant)
	// ErrTruncatedTree indicates the remote returned a partial recursive listing.
	ErrTruncatedTree = errors.New(truncatedTreeMessageConstant)
)

// NewService constructs a Service with the provided dependencies.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Repository == nil {
		return nil, ErrRepositoryNotConfigured
	}
	if dependencies.FileSystem == nil {
		return nil, ErrFileSystemNotConfigured
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := dependencies.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Service{
		logger:     logger,
		repository: dependencies.Repository,
		fileSystem: dependencies.FileSystem,
		clock:      clock,
		reporter:   dependencies.Reporter,
	}, nil
}

// publication carries the state of one run between stages.
type publication struct {
	options  Options
	snapshot gitdata.TreeSnapshot
	changes  baseline.ChangeSet
	results  []baseline.ReconciliationResult
	root     baseline.TreeBuildResult
	subtree  baseline.TreeBuildResult
	match    gitdata.PullRequest
	matched  bool
	parent   string
	commit   string
}

// Publish collects the updated files, rebuilds the baseline tree, commits it and
// creates or updates the pull request titled options.Title. A failure is logged
// once with its stage before it is returned.
func (service *Service) Publish(executionContext context.Context, options Options) (Result, error) {
	state := &publication{options: options}

	stages := []struct {
		stage Stage
		run   func(context.Context, *publication) error
	}{
		{stage: StageCollecting, run: service.collect},
		{stage: StageReconciling, run: service.reconcile},
		{stage: StageBuilding, run: service.build},
		{stage: StageGrafting, run: service.graft},
		{stage: StagePullRequestQuery, run: service.lookupPullRequest},
		{stage: StageCommitting, run: service.commit},
	}

	for _, step := range stages {
		service.logger.Debug(stageStartedMessageConstant, zap.String(logFieldStageConstant, string(step.stage)))
		if stageError := step.run(executionContext, state); stageError != nil {
			service.logFailure(step.stage, stageError)
			return Result{}, stageError
		}
	}

	service.logger.Debug(stageStartedMessageConstant, zap.String(logFieldStageConstant, string(StagePullRequestWrite)))
	result, writeError := service.createOrUpdatePullRequest(executionContext, state)
	if writeError != nil {
		service.logFailure(StagePullRequestWrite, writeError)
		return Result{}, writeError
	}

	if service.reporter != nil {
		if reportError := service.reporter.Report(result); reportError != nil {
			service.logger.Warn(reportFailedMessageConstant, zap.String(logFieldStageConstant, string(StageReporting)), zap.Error(reportError))
		}
	}

	return result, nil
}

func (service *Service) collect(executionContext context.Context, state *publication) error {
	collector, collectorError := baseline.NewCollector(service.fileSystem, state.options.UpdatedFilePrefix, service.logger)
	if collectorError != nil {
		return collectorError
	}
	changes, collectError := collector.Collect(state.options.UpdatedPath)
	if collectError != nil {
		return collectError
	}
	if changes.Len() == 0 {
		service.logger.Info(noUpdatedFilesMessageConstant, zap.String(logFieldPathConstant, state.options.UpdatedPath))
	}
	state.changes = changes

	snapshot, treeError := service.repository.GetTreeRecursive(executionContext, state.options.TargetBranch)
	if treeError != nil {
		return baseline.RemoteAPIError{Operation: getTreeOperationConstant, Subject: state.options.TargetBranch, Cause: treeError}
	}
	if snapshot.Truncated {
		return baseline.RemoteAPIError{Operation: getTreeOperationConstant, Subject: state.options.TargetBranch, Cause: ErrTruncatedTree}
	}
	state.snapshot = snapshot
	return nil
}

func (service *Service) reconcile(executionContext context.Context, state *publication) error {
	policy, policyError := baseline.NewPolicy(state.options.Pipeline, baseline.PolicyOptions{
		FileSystem:       service.fileSystem,
		BlobReader:       service.repository,
		FilePrefix:       state.options.UpdatedFilePrefix,
		ExclusionsMarker: state.options.ExclusionsMarker,
		Logger:           service.logger,
	})
	if policyError != nil {
		return policyError
	}

	current := baseline.NewEntrySetUnderPath(state.snapshot, state.options.OriginalPath)
	results, reconcileError := policy.Reconcile(executionContext, state.changes, current)
	if reconcileError != nil {
		return reconcileError
	}
	state.results = results

	service.logger.Info(reconciledMessageConstant,
		zap.Int(logFieldChangeKeysConstant, state.changes.Len()),
		zap.Int(logFieldFilesConstant, state.changes.FileCount()),
		zap.Int(logFieldResultsConstant, len(results)),
		zap.String(logFieldFingerprintConstant, baseline.Fingerprint(results)),
	)
	return nil
}

func (service *Service) build(executionContext context.Context, state *publication) error {
	current := baseline.NewEntrySetUnderPath(state.snapshot, state.options.OriginalPath)
	subtree, buildError := service.newTreeBuilder(state.options).Build(executionContext, current.Apply(state.results), "")
	if buildError != nil {
		return buildError
	}
	state.subtree = subtree
	return nil
}

func (service *Service) graft(executionContext context.Context, state *publication) error {
	root, graftError := service.newTreeBuilder(state.options).Graft(executionContext, state.snapshot, state.subtree, state.options.OriginalPath)
	if graftError != nil {
		return graftError
	}
	state.root = root

	service.logger.Info(treeBuiltMessageConstant,
		zap.String(logFieldTreeConstant, root.SHA),
		zap.Int(logFieldCreatedTreesConstant, state.subtree.CreatedTrees+root.CreatedTrees),
		zap.Int(logFieldUploadedBlobsConstant, state.subtree.UploadedBlobs),
	)
	return nil
}

func (service *Service) lookupPullRequest(executionContext context.Context, state *publication) error {
	pullRequests, listError := service.repository.ListOpenPullRequests(executionContext, state.options.TargetBranch)
	if listError != nil {
		return baseline.RemoteAPIError{Operation: listPullRequestsOperationConstant, Subject: state.options.TargetBranch, Cause: listError}
	}
	state.match, state.matched = lo.Find(pullRequests, func(candidate gitdata.PullRequest) bool {
		return candidate.Title == state.options.Title
	})
	return nil
}

func (service *Service) commit(executionContext context.Context, state *publication) error {
	parentBranch := state.options.TargetBranch
	if state.matched {
		parentBranch = state.match.HeadBranch
	}
	parentSHA, headError := service.repository.GetBranchHead(executionContext, parentBranch)
	if headError != nil {
		return baseline.RemoteAPIError{Operation: getBranchHeadOperationConstant, Subject: parentBranch, Cause: headError}
	}
	state.parent = parentSHA

	commitSHA, commitError := service.repository.CreateCommit(executionContext, gitdata.CommitRequest{
		Message:   fmt.Sprintf(commitMessageTemplateConstant, state.options.BuildLinkPrefix, state.options.BuildID),
		TreeSHA:   state.root.SHA,
		ParentSHA: parentSHA,
	})
	if commitError != nil {
		return baseline.RemoteAPIError{Operation: createCommitOperationConstant, Subject: state.root.SHA, Cause: commitError}
	}
	state.commit = commitSHA

	service.logger.Info(commitCreatedMessageConstant,
		zap.String(logFieldCommitConstant, commitSHA),
		zap.String(logFieldParentConstant, parentSHA),
		zap.String(logFieldBranchConstant, parentBranch),
	)
	return nil
}

func (service *Service) createOrUpdatePullRequest(executionContext context.Context, state *publication) (Result, error) {
	result := Result{
		CommitSHA:     state.commit,
		TreeSHA:       state.root.SHA,
		Fingerprint:   baseline.Fingerprint(state.results),
		ChangeKeys:    state.changes.Len(),
		ChangedFiles:  state.changes.FileCount(),
		Reconciled:    len(state.results),
		CreatedTrees:  state.subtree.CreatedTrees + state.root.CreatedTrees,
		UploadedBlobs: state.subtree.UploadedBlobs,
		UploadedBytes: state.subtree.UploadedBytes,
	}
	body := fmt.Sprintf(pullRequestBodyTemplateConstant, state.options.BuildID, state.options.BuildLinkPrefix, state.options.BuildID, result.Fingerprint)

	if state.matched {
		if updateError := service.repository.UpdateBranch(executionContext, state.match.HeadBranch, state.commit); updateError != nil {
			return Result{}, baseline.RemoteAPIError{Operation: updateBranchOperationConstant, Subject: state.match.HeadBranch, Cause: updateError}
		}
		if state.options.UpdateExistingBody {
			if bodyError := service.repository.UpdatePullRequestBody(executionContext, state.match.Number, body); bodyError != nil {
				return Result{}, baseline.RemoteAPIError{Operation: updatePullRequestOperationConstant, Subject: fmt.Sprintf(pullRequestSubjectTemplateConstant, state.match.Number), Cause: bodyError}
			}
		}
		result.Outcome = OutcomeUpdated
		result.PullRequest = state.match
		result.BranchName = state.match.HeadBranch
		service.logger.Info(fmt.Sprintf(updatedPullRequestTemplateConstant, state.match.Number, state.match.URL),
			zap.String(logFieldOutcomeConstant, string(result.Outcome)),
			zap.Int(logFieldPullRequestConstant, state.match.Number),
		)
		return result, nil
	}

	comparison, compareError := service.repository.CompareCommits(executionContext, state.parent, state.commit)
	if compareError != nil {
		return Result{}, baseline.RemoteAPIError{Operation: compareCommitsOperationConstant, Subject: state.commit, Cause: compareError}
	}
	if comparison.Identical() {
		result.Outcome = OutcomeNoChanges
		service.logger.Info(noChangesMessageConstant, zap.String(logFieldOutcomeConstant, string(result.Outcome)))
		return result, nil
	}

	branchName := state.options.BranchPrefix + service.clock().UTC().Format(branchTimestampLayoutConstant)
	if branchError := service.repository.CreateBranch(executionContext, branchName, state.commit); branchError != nil {
		return Result{}, baseline.RemoteAPIError{Operation: createBranchOperationConstant, Subject: branchName, Cause: branchError}
	}

	pullRequest, createError := service.repository.CreatePullRequest(executionContext, gitdata.NewPullRequest{
		Title:      state.options.Title,
		HeadBranch: branchName,
		BaseBranch: state.options.TargetBranch,
		Body:       body,
	})
	if createError != nil {
		return Result{}, baseline.RemoteAPIError{Operation: createPullRequestOperationConstant, Subject: branchName, Cause: createError}
	}

	result.Outcome = OutcomeCreated
	result.PullRequest = pullRequest
	result.BranchName = branchName
	service.logger.Info(fmt.Sprintf(createdPullRequestTemplateConstant, pullRequest.Number, pullRequest.URL),
		zap.String(logFieldOutcomeConstant, string(result.Outcome)),
		zap.Int(logFieldPullRequestConstant, pullRequest.Number),
	)
	return result, nil
}

func (service *Service) newTreeBuilder(options Options) *baseline.TreeBuilder {
	return baseline.NewTreeBuilder(service.repository, options.MaxParallelUploads, service.logger)
}

func (service *Service) logFailure(stage Stage, failure error) {
	service.logger.Error(publicationFailedMessageConstant,
		zap.String(logFieldStageConstant, string(stage)),
		zap.String(logFieldSubjectConstant, failureSubject(failure)),
		zap.Error(failure),
	)
}

// failureSubject extracts the path, key or remote object a failure concerns.
func failureSubject(failure error) string {
	var remoteError baseline.RemoteAPIError
	if errors.As(failure, &remoteError) {
		return remoteError.Subject
	}
	var ioError baseline.IOError
	if errors.As(failure, &ioError) {
		return ioError.Path
	}
	var conflictError baseline.ConflictError
	if errors.As(failure, &conflictError) {
		return conflictError.Path
	}
	var configError baseline.ConfigError
	if errors.As(failure, &configError) {
		return configError.Field
	}
	return ""
}
