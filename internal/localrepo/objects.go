package localrepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/temirov/prbaseline/internal/gitdata"
)

const (
	modeFormatConstant        = "%06o"
	treeSortSuffixConstant    = "/"
	invalidEntryNameTemplate  = "tree entry name %q must be a single path segment"
	invalidEntryModeTemplate  = "tree entry %q has invalid mode %q: %w"
	objectReadErrorTemplate   = "read %s %s: %w"
	objectWriteErrorTemplate  = "write %s: %w"
	treeWalkErrorTemplate     = "walk tree %s: %w"
	blobObjectLabelConstant   = "blob"
	treeObjectLabelConstant   = "tree"
	commitObjectLabelConstant = "commit"
	comparisonStatusIdentical = "identical"
	comparisonStatusAhead     = "ahead"
	comparisonStatusBehind    = "behind"
	comparisonStatusDiverged  = "diverged"
)

// ErrInvalidTreeEntry indicates CreateTree received an entry it cannot encode.
var ErrInvalidTreeEntry = errors.New("invalid tree entry")

// GetTreeRecursive lists the tree of the commit at the head of branch.
func (repository *Repository) GetTreeRecursive(executionContext context.Context, branch string) (gitdata.TreeSnapshot, error) {
	headHash, headError := repository.branchHead(branch)
	if headError != nil {
		return gitdata.TreeSnapshot{}, headError
	}

	commit, commitError := repository.repository.CommitObject(headHash)
	if commitError != nil {
		return gitdata.TreeSnapshot{}, fmt.Errorf(objectReadErrorTemplate, commitObjectLabelConstant, headHash, commitError)
	}
	tree, treeError := commit.Tree()
	if treeError != nil {
		return gitdata.TreeSnapshot{}, fmt.Errorf(objectReadErrorTemplate, treeObjectLabelConstant, commit.TreeHash, treeError)
	}

	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()

	var entries []gitdata.TreeEntry
	for {
		if contextError := executionContext.Err(); contextError != nil {
			return gitdata.TreeSnapshot{}, contextError
		}
		name, entry, walkError := walker.Next()
		if errors.Is(walkError, io.EOF) {
			break
		}
		if walkError != nil {
			return gitdata.TreeSnapshot{}, fmt.Errorf(treeWalkErrorTemplate, tree.Hash, walkError)
		}
		entries = append(entries, gitdata.TreeEntry{
			Path: name,
			Kind: entryKind(entry.Mode),
			Mode: formatMode(entry.Mode),
			SHA:  entry.Hash.String(),
		})
	}

	return gitdata.TreeSnapshot{SHA: tree.Hash.String(), Entries: entries}, nil
}

// ReadBlob returns the content of blob sha.
func (repository *Repository) ReadBlob(executionContext context.Context, sha string) ([]byte, error) {
	blob, blobError := repository.repository.BlobObject(plumbing.NewHash(sha))
	if blobError != nil {
		return nil, fmt.Errorf(objectReadErrorTemplate, blobObjectLabelConstant, sha, blobError)
	}
	reader, readerError := blob.Reader()
	if readerError != nil {
		return nil, fmt.Errorf(objectReadErrorTemplate, blobObjectLabelConstant, sha, readerError)
	}
	defer reader.Close()

	content, readError := io.ReadAll(reader)
	if readError != nil {
		return nil, fmt.Errorf(objectReadErrorTemplate, blobObjectLabelConstant, sha, readError)
	}
	return content, nil
}

// CreateBlob stores content as a blob object.
func (repository *Repository) CreateBlob(executionContext context.Context, content []byte) (string, error) {
	repository.objectMutex.Lock()
	defer repository.objectMutex.Unlock()

	encodedObject := repository.repository.Storer.NewEncodedObject()
	encodedObject.SetType(plumbing.BlobObject)
	encodedObject.SetSize(int64(len(content)))

	writer, writerError := encodedObject.Writer()
	if writerError != nil {
		return "", fmt.Errorf(objectWriteErrorTemplate, blobObjectLabelConstant, writerError)
	}
	if _, writeError := writer.Write(content); writeError != nil {
		_ = writer.Close()
		return "", fmt.Errorf(objectWriteErrorTemplate, blobObjectLabelConstant, writeError)
	}
	if closeError := writer.Close(); closeError != nil {
		return "", fmt.Errorf(objectWriteErrorTemplate, blobObjectLabelConstant, closeError)
	}

	return repository.store(blobObjectLabelConstant, encodedObject)
}

// CreateTree encodes entries, sorted in git tree order, as a tree object.
func (repository *Repository) CreateTree(executionContext context.Context, entries []gitdata.TreeEntry) (string, error) {
	treeEntries := make([]object.TreeEntry, 0, len(entries))
	for _, entry := range entries {
		if len(entry.Path) == 0 || strings.Contains(entry.Path, treeSortSuffixConstant) {
			return "", fmt.Errorf("%w: "+invalidEntryNameTemplate, ErrInvalidTreeEntry, entry.Path)
		}
		mode, modeError := filemode.New(entry.Mode)
		if modeError != nil {
			return "", fmt.Errorf("%w: "+invalidEntryModeTemplate, ErrInvalidTreeEntry, entry.Path, entry.Mode, modeError)
		}
		treeEntries = append(treeEntries, object.TreeEntry{Name: entry.Path, Mode: mode, Hash: plumbing.NewHash(entry.SHA)})
	}

	sort.Slice(treeEntries, func(leftIndex int, rightIndex int) bool {
		return treeSortKey(treeEntries[leftIndex]) < treeSortKey(treeEntries[rightIndex])
	})

	repository.objectMutex.Lock()
	defer repository.objectMutex.Unlock()

	tree := object.Tree{Entries: treeEntries}
	encodedObject := repository.repository.Storer.NewEncodedObject()
	if encodeError := tree.Encode(encodedObject); encodeError != nil {
		return "", fmt.Errorf(objectWriteErrorTemplate, treeObjectLabelConstant, encodeError)
	}
	return repository.store(treeObjectLabelConstant, encodedObject)
}

// CreateCommit stores a commit authored by the configured identity.
func (repository *Repository) CreateCommit(executionContext context.Context, request gitdata.CommitRequest) (string, error) {
	var parents []plumbing.Hash
	if len(request.ParentSHA) > 0 {
		parents = append(parents, plumbing.NewHash(request.ParentSHA))
	}

	signature := object.Signature{Name: repository.authorName, Email: repository.authorEmail, When: repository.clock()}
	commit := object.Commit{
		Author:       signature,
		Committer:    signature,
		Message:      request.Message,
		TreeHash:     plumbing.NewHash(request.TreeSHA),
		ParentHashes: parents,
	}

	repository.objectMutex.Lock()
	defer repository.objectMutex.Unlock()

	encodedObject := repository.repository.Storer.NewEncodedObject()
	if encodeError := commit.Encode(encodedObject); encodeError != nil {
		return "", fmt.Errorf(objectWriteErrorTemplate, commitObjectLabelConstant, encodeError)
	}
	return repository.store(commitObjectLabelConstant, encodedObject)
}

// CompareCommits diffs the trees of baseSHA and headSHA.
func (repository *Repository) CompareCommits(executionContext context.Context, baseSHA string, headSHA string) (gitdata.CommitComparison, error) {
	baseCommit, baseError := repository.repository.CommitObject(plumbing.NewHash(baseSHA))
	if baseError != nil {
		return gitdata.CommitComparison{}, fmt.Errorf(objectReadErrorTemplate, commitObjectLabelConstant, baseSHA, baseError)
	}
	headCommit, headError := repository.repository.CommitObject(plumbing.NewHash(headSHA))
	if headError != nil {
		return gitdata.CommitComparison{}, fmt.Errorf(objectReadErrorTemplate, commitObjectLabelConstant, headSHA, headError)
	}

	baseTree, baseTreeError := baseCommit.Tree()
	if baseTreeError != nil {
		return gitdata.CommitComparison{}, fmt.Errorf(objectReadErrorTemplate, treeObjectLabelConstant, baseCommit.TreeHash, baseTreeError)
	}
	headTree, headTreeError := headCommit.Tree()
	if headTreeError != nil {
		return gitdata.CommitComparison{}, fmt.Errorf(objectReadErrorTemplate, treeObjectLabelConstant, headCommit.TreeHash, headTreeError)
	}

	changes, diffError := object.DiffTreeWithOptions(executionContext, baseTree, headTree, &object.DiffTreeOptions{})
	if diffError != nil {
		return gitdata.CommitComparison{}, diffError
	}

	status, statusError := comparisonStatus(baseCommit, headCommit)
	if statusError != nil {
		return gitdata.CommitComparison{}, statusError
	}
	return gitdata.CommitComparison{Status: status, ChangedFiles: len(changes)}, nil
}

func (repository *Repository) store(label string, encodedObject plumbing.EncodedObject) (string, error) {
	hash, storeError := repository.repository.Storer.SetEncodedObject(encodedObject)
	if storeError != nil {
		return "", fmt.Errorf(objectWriteErrorTemplate, label, storeError)
	}
	return hash.String(), nil
}

func comparisonStatus(baseCommit *object.Commit, headCommit *object.Commit) (string, error) {
	if baseCommit.Hash == headCommit.Hash {
		return comparisonStatusIdentical, nil
	}
	headIsAhead, aheadError := baseCommit.IsAncestor(headCommit)
	if aheadError != nil {
		return "", aheadError
	}
	if headIsAhead {
		return comparisonStatusAhead, nil
	}
	headIsBehind, behindError := headCommit.IsAncestor(baseCommit)
	if behindError != nil {
		return "", behindError
	}
	if headIsBehind {
		return comparisonStatusBehind, nil
	}
	return comparisonStatusDiverged, nil
}

func entryKind(mode filemode.FileMode) gitdata.EntryKind {
	switch mode {
	case filemode.Dir:
		return gitdata.EntryKindTree
	case filemode.Submodule:
		return gitdata.EntryKindCommit
	default:
		return gitdata.EntryKindBlob
	}
}

func formatMode(mode filemode.FileMode) string {
	return fmt.Sprintf(modeFormatConstant, uint32(mode))
}

// treeSortKey orders directories as if their names carried a trailing slash.
func treeSortKey(entry object.TreeEntry) string {
	if entry.Mode == filemode.Dir {
		return entry.Name + treeSortSuffixConstant
	}
	return entry.Name
}
