package localrepo

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/spf13/afero"

	"github.com/temirov/prbaseline/internal/gitdata"
)

const (
	defaultAuthorNameConstant   = "prbaseline"
	defaultAuthorEmailConstant  = "prbaseline@localhost"
	memoryLocationConstant      = "memory"
	openRepositoryErrorTemplate = "open repository %s: %w"
	initRepositoryErrorTemplate = "initialize in-memory repository: %w"
	fileSystemMissingMessage    = "ledger file system not configured"
)

// ErrLedgerFileSystemNotConfigured indicates a ledger path was set without a file system.
var ErrLedgerFileSystemNotConfigured = errors.New(fileSystemMissingMessage)

// Clock supplies commit timestamps.
type Clock func() time.Time

// Options configures Repository.
type Options struct {
	// RepositoryPath selects an existing repository on disk. Empty uses an in-memory store.
	RepositoryPath string
	// LedgerPath is the YAML pull request ledger. Empty keeps the ledger in memory.
	LedgerPath  string
	FileSystem  afero.Fs
	AuthorName  string
	AuthorEmail string
	Clock       Clock
}

// Repository stores git objects with go-git and pull requests in a ledger.
type Repository struct {
	repository  *git.Repository
	location    string
	ledger      *PullRequestLedger
	authorName  string
	authorEmail string
	clock       Clock
	objectMutex sync.Mutex
}

// Open opens the repository described by options.
func Open(options Options) (*Repository, error) {
	var repository *git.Repository
	location := strings.TrimSpace(options.RepositoryPath)
	if len(location) == 0 {
		initializedRepository, initError := git.Init(memory.NewStorage(), nil)
		if initError != nil {
			return nil, fmt.Errorf(initRepositoryErrorTemplate, initError)
		}
		repository = initializedRepository
		location = memoryLocationConstant
	} else {
		openedRepository, openError := git.PlainOpen(location)
		if openError != nil {
			return nil, fmt.Errorf(openRepositoryErrorTemplate, location, openError)
		}
		repository = openedRepository
	}

	ledgerPath := strings.TrimSpace(options.LedgerPath)
	if len(ledgerPath) > 0 && options.FileSystem == nil {
		return nil, ErrLedgerFileSystemNotConfigured
	}
	ledger, ledgerError := NewPullRequestLedger(options.FileSystem, ledgerPath, location)
	if ledgerError != nil {
		return nil, ledgerError
	}

	authorName := strings.TrimSpace(options.AuthorName)
	if len(authorName) == 0 {
		authorName = defaultAuthorNameConstant
	}
	authorEmail := strings.TrimSpace(options.AuthorEmail)
	if len(authorEmail) == 0 {
		authorEmail = defaultAuthorEmailConstant
	}
	clock := options.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Repository{
		repository:  repository,
		location:    location,
		ledger:      ledger,
		authorName:  authorName,
		authorEmail: authorEmail,
		clock:       clock,
	}, nil
}

// Location reports the repository path, or "memory" for an in-memory store.
func (repository *Repository) Location() string {
	return repository.location
}

var _ gitdata.Repository = (*Repository)(nil)
