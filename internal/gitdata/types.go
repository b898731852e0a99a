package gitdata

import "strings"

const (
	// BlobModeConstant is the mode assigned to regular file entries.
	BlobModeConstant = "100644"
	// TreeModeConstant is the mode assigned to directory entries.
	TreeModeConstant = "040000"
	// SubmoduleModeConstant is the mode of gitlink entries.
	SubmoduleModeConstant = "160000"

	pathSeparatorConstant = "/"
)

// EntryKind enumerates tree entry object types.
type EntryKind string

// Supported entry kinds.
const (
	EntryKindBlob   EntryKind = EntryKind("blob")
	EntryKindTree   EntryKind = EntryKind("tree")
	EntryKindCommit EntryKind = EntryKind("commit")
)

// TreeEntry is a single entry of a tree listing. Path is relative to the tree
// the entry was listed from; entries passed to CreateTree carry a single path segment.
type TreeEntry struct {
	Path string
	Kind EntryKind
	Mode string
	SHA  string
}

// IsTree reports whether the entry references a tree object.
func (entry TreeEntry) IsTree() bool {
	return entry.Kind == EntryKindTree
}

// Name returns the final path segment of the entry.
func (entry TreeEntry) Name() string {
	separatorIndex := strings.LastIndex(entry.Path, pathSeparatorConstant)
	if separatorIndex == -1 {
		return entry.Path
	}
	return entry.Path[separatorIndex+1:]
}

// TreeSnapshot is an immutable, content-addressed tree together with its flat recursive listing.
type TreeSnapshot struct {
	SHA       string
	Entries   []TreeEntry
	Truncated bool
}

// CommitRequest describes a commit to create.
type CommitRequest struct {
	Message   string
	TreeSHA   string
	ParentSHA string
}

// CommitComparison summarizes the difference between two commits.
type CommitComparison struct {
	Status       string
	ChangedFiles int
}

// Identical reports whether the comparison found no changed files.
func (comparison CommitComparison) Identical() bool {
	return comparison.ChangedFiles == 0
}

// PullRequest captures the pull request details the publisher relies on.
type PullRequest struct {
	Number     int
	Title      string
	HeadBranch string
	BaseBranch string
	URL        string
}

// NewPullRequest describes a pull request to open.
type NewPullRequest struct {
	Title      string
	HeadBranch string
	BaseBranch string
	Body       string
}
