package localrepo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/temirov/prbaseline/internal/gitdata"
)

const (
	pullRequestStateOpen         = "open"
	pullRequestURLTemplate       = "%s/pull/%d"
	ledgerReadErrorTemplate      = "read pull request ledger %s: %w"
	ledgerDecodeErrorTemplate    = "decode pull request ledger %s: %w"
	ledgerWriteErrorTemplate     = "write pull request ledger %s: %w"
	ledgerDirectoryPermissions   = 0o755
	ledgerFilePermissions        = 0o644
	duplicateHeadMessageTemplate = "pull request #%d already tracks %s"
	missingPullRequestTemplate   = "pull request #%d not found"
	missingTitleMessageConstant  = "pull request title required"
)

var (
	// ErrPullRequestNotFound indicates an unknown pull request number.
	ErrPullRequestNotFound = errors.New("pull request not found")
	// ErrDuplicatePullRequest indicates an open pull request already uses the head branch.
	ErrDuplicatePullRequest = errors.New("duplicate pull request")
	// ErrPullRequestTitleRequired indicates an empty pull request title.
	ErrPullRequestTitleRequired = errors.New(missingTitleMessageConstant)
)

type ledgerEntry struct {
	Number int    `yaml:"number"`
	Title  string `yaml:"title"`
	Head   string `yaml:"head"`
	Base   string `yaml:"base"`
	Body   string `yaml:"body"`
	State  string `yaml:"state"`
	URL    string `yaml:"url"`
}

type ledgerDocument struct {
	NextNumber   int           `yaml:"next_number"`
	PullRequests []ledgerEntry `yaml:"pull_requests"`
}

// PullRequestLedger records pull requests as YAML. Without a path it only lives in memory.
type PullRequestLedger struct {
	fileSystem afero.Fs
	path       string
	location   string
	mutex      sync.Mutex
	document   ledgerDocument
}

// NewPullRequestLedger loads the ledger at path when it exists.
func NewPullRequestLedger(fileSystem afero.Fs, path string, location string) (*PullRequestLedger, error) {
	ledger := &PullRequestLedger{fileSystem: fileSystem, path: path, location: location}
	if len(path) == 0 {
		return ledger, nil
	}

	exists, existsError := afero.Exists(fileSystem, path)
	if existsError != nil {
		return nil, fmt.Errorf(ledgerReadErrorTemplate, path, existsError)
	}
	if !exists {
		return ledger, nil
	}

	contents, readError := afero.ReadFile(fileSystem, path)
	if readError != nil {
		return nil, fmt.Errorf(ledgerReadErrorTemplate, path, readError)
	}
	if decodeError := yaml.Unmarshal(contents, &ledger.document); decodeError != nil {
		return nil, fmt.Errorf(ledgerDecodeErrorTemplate, path, decodeError)
	}
	return ledger, nil
}

func (ledger *PullRequestLedger) listOpen(baseBranch string) []gitdata.PullRequest {
	ledger.mutex.Lock()
	defer ledger.mutex.Unlock()

	var pullRequests []gitdata.PullRequest
	for _, entry := range ledger.document.PullRequests {
		if entry.State != pullRequestStateOpen || entry.Base != baseBranch {
			continue
		}
		pullRequests = append(pullRequests, entry.pullRequest())
	}
	return pullRequests
}

func (ledger *PullRequestLedger) create(request gitdata.NewPullRequest) (gitdata.PullRequest, error) {
	ledger.mutex.Lock()
	defer ledger.mutex.Unlock()

	for _, entry := range ledger.document.PullRequests {
		if entry.State == pullRequestStateOpen && entry.Head == request.HeadBranch {
			return gitdata.PullRequest{}, fmt.Errorf("%w: "+duplicateHeadMessageTemplate, ErrDuplicatePullRequest, entry.Number, entry.Head)
		}
	}

	number := ledger.document.NextNumber
	if number < len(ledger.document.PullRequests)+1 {
		number = len(ledger.document.PullRequests) + 1
	}
	entry := ledgerEntry{
		Number: number,
		Title:  request.Title,
		Head:   request.HeadBranch,
		Base:   request.BaseBranch,
		Body:   request.Body,
		State:  pullRequestStateOpen,
		URL:    fmt.Sprintf(pullRequestURLTemplate, ledger.location, number),
	}

	updatedDocument := ledgerDocument{
		NextNumber:   number + 1,
		PullRequests: append(append([]ledgerEntry{}, ledger.document.PullRequests...), entry),
	}
	if persistError := ledger.persist(updatedDocument); persistError != nil {
		return gitdata.PullRequest{}, persistError
	}
	ledger.document = updatedDocument
	return entry.pullRequest(), nil
}

func (ledger *PullRequestLedger) updateBody(number int, body string) error {
	ledger.mutex.Lock()
	defer ledger.mutex.Unlock()

	updatedEntries := append([]ledgerEntry{}, ledger.document.PullRequests...)
	for entryIndex := range updatedEntries {
		if updatedEntries[entryIndex].Number != number {
			continue
		}
		updatedEntries[entryIndex].Body = body
		updatedDocument := ledgerDocument{NextNumber: ledger.document.NextNumber, PullRequests: updatedEntries}
		if persistError := ledger.persist(updatedDocument); persistError != nil {
			return persistError
		}
		ledger.document = updatedDocument
		return nil
	}
	return fmt.Errorf("%w: "+missingPullRequestTemplate, ErrPullRequestNotFound, number)
}

// Body returns the recorded body of pull request number.
func (ledger *PullRequestLedger) Body(number int) (string, bool) {
	ledger.mutex.Lock()
	defer ledger.mutex.Unlock()

	for _, entry := range ledger.document.PullRequests {
		if entry.Number == number {
			return entry.Body, true
		}
	}
	return "", false
}

func (ledger *PullRequestLedger) persist(document ledgerDocument) error {
	if len(ledger.path) == 0 {
		return nil
	}
	encoded, encodeError := yaml.Marshal(document)
	if encodeError != nil {
		return fmt.Errorf(ledgerWriteErrorTemplate, ledger.path, encodeError)
	}
	if directoryError := ledger.fileSystem.MkdirAll(filepath.Dir(ledger.path), ledgerDirectoryPermissions); directoryError != nil {
		return fmt.Errorf(ledgerWriteErrorTemplate, ledger.path, directoryError)
	}
	if writeError := afero.WriteFile(ledger.fileSystem, ledger.path, encoded, ledgerFilePermissions); writeError != nil {
		return fmt.Errorf(ledgerWriteErrorTemplate, ledger.path, writeError)
	}
	return nil
}

func (entry ledgerEntry) pullRequest() gitdata.PullRequest {
	return gitdata.PullRequest{
		Number:     entry.Number,
		Title:      entry.Title,
		HeadBranch: entry.Head,
		BaseBranch: entry.Base,
		URL:        entry.URL,
	}
}

// Ledger exposes the pull request ledger backing the repository.
func (repository *Repository) Ledger() *PullRequestLedger {
	return repository.ledger
}

// ListOpenPullRequests lists open ledger entries targeting baseBranch.
func (repository *Repository) ListOpenPullRequests(executionContext context.Context, baseBranch string) ([]gitdata.PullRequest, error) {
	return repository.ledger.listOpen(baseBranch), nil
}

// CreatePullRequest records a pull request after checking both branches exist.
func (repository *Repository) CreatePullRequest(executionContext context.Context, request gitdata.NewPullRequest) (gitdata.PullRequest, error) {
	if len(strings.TrimSpace(request.Title)) == 0 {
		return gitdata.PullRequest{}, ErrPullRequestTitleRequired
	}
	if _, headError := repository.branchHead(request.HeadBranch); headError != nil {
		return gitdata.PullRequest{}, headError
	}
	if _, baseError := repository.branchHead(request.BaseBranch); baseError != nil {
		return gitdata.PullRequest{}, baseError
	}
	return repository.ledger.create(request)
}

// UpdatePullRequestBody replaces the recorded body of pull request number.
func (repository *Repository) UpdatePullRequestBody(executionContext context.Context, number int, body string) error {
	return repository.ledger.updateBody(number, body)
}
