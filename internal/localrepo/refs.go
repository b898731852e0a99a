package localrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
)

const (
	branchResolveErrorTemplate = "resolve branch %s: %w"
	branchWriteErrorTemplate   = "write branch %s: %w"
)

var (
	// ErrBranchRequired indicates an empty branch name.
	ErrBranchRequired = errors.New("branch name required")
	// ErrBranchExists indicates CreateBranch targeted an existing branch.
	ErrBranchExists = errors.New("branch already exists")
)

// GetBranchHead resolves the commit branch points at.
func (repository *Repository) GetBranchHead(executionContext context.Context, branch string) (string, error) {
	headHash, headError := repository.branchHead(branch)
	if headError != nil {
		return "", headError
	}
	return headHash.String(), nil
}

// CreateBranch creates refs/heads/<branch> at commitSHA and fails when it already exists.
func (repository *Repository) CreateBranch(executionContext context.Context, branch string, commitSHA string) error {
	referenceName, nameError := branchReferenceName(branch)
	if nameError != nil {
		return nameError
	}

	repository.objectMutex.Lock()
	defer repository.objectMutex.Unlock()

	if _, lookupError := repository.repository.Storer.Reference(referenceName); lookupError == nil {
		return fmt.Errorf(branchWriteErrorTemplate, branch, ErrBranchExists)
	} else if !errors.Is(lookupError, plumbing.ErrReferenceNotFound) {
		return fmt.Errorf(branchResolveErrorTemplate, branch, lookupError)
	}

	return repository.setBranch(referenceName, branch, commitSHA)
}

// UpdateBranch force-moves branch to commitSHA.
func (repository *Repository) UpdateBranch(executionContext context.Context, branch string, commitSHA string) error {
	referenceName, nameError := branchReferenceName(branch)
	if nameError != nil {
		return nameError
	}

	repository.objectMutex.Lock()
	defer repository.objectMutex.Unlock()

	return repository.setBranch(referenceName, branch, commitSHA)
}

func (repository *Repository) setBranch(referenceName plumbing.ReferenceName, branch string, commitSHA string) error {
	reference := plumbing.NewHashReference(referenceName, plumbing.NewHash(commitSHA))
	if setError := repository.repository.Storer.SetReference(reference); setError != nil {
		return fmt.Errorf(branchWriteErrorTemplate, branch, setError)
	}
	return nil
}

func (repository *Repository) branchHead(branch string) (plumbing.Hash, error) {
	referenceName, nameError := branchReferenceName(branch)
	if nameError != nil {
		return plumbing.ZeroHash, nameError
	}
	reference, referenceError := repository.repository.Reference(referenceName, true)
	if referenceError != nil {
		return plumbing.ZeroHash, fmt.Errorf(branchResolveErrorTemplate, branch, referenceError)
	}
	return reference.Hash(), nil
}

func branchReferenceName(branch string) (plumbing.ReferenceName, error) {
	trimmedBranch := strings.TrimSpace(branch)
	if len(trimmedBranch) == 0 {
		return "", ErrBranchRequired
	}
	return plumbing.NewBranchReferenceName(trimmedBranch), nil
}
