package gitdata

import "context"

// TreeReader lists trees.
type TreeReader interface {
	// GetTreeRecursive returns the flat, recursive listing of the tree at the head of branch.
	GetTreeRecursive(executionContext context.Context, branch string) (TreeSnapshot, error)
}

// BlobStore reads and writes blob content.
type BlobStore interface {
	ReadBlob(executionContext context.Context, sha string) ([]byte, error)
	CreateBlob(executionContext context.Context, content []byte) (string, error)
}

// TreeWriter creates single-level tree objects.
type TreeWriter interface {
	CreateTree(executionContext context.Context, entries []TreeEntry) (string, error)
}

// RefStore manages commits and branch references.
type RefStore interface {
	GetBranchHead(executionContext context.Context, branch string) (string, error)
	CreateCommit(executionContext context.Context, request CommitRequest) (string, error)
	CreateBranch(executionContext context.Context, branch string, commitSHA string) error
	// UpdateBranch force-moves branch to commitSHA.
	UpdateBranch(executionContext context.Context, branch string, commitSHA string) error
	CompareCommits(executionContext context.Context, baseSHA string, headSHA string) (CommitComparison, error)
}

// PullRequestService manages pull requests.
type PullRequestService interface {
	ListOpenPullRequests(executionContext context.Context, baseBranch string) ([]PullRequest, error)
	CreatePullRequest(executionContext context.Context, request NewPullRequest) (PullRequest, error)
	UpdatePullRequestBody(executionContext context.Context, number int, body string) error
}

// Repository is the full remote capability required to publish baselines.
type Repository interface {
	TreeReader
	BlobStore
	TreeWriter
	RefStore
	PullRequestService
}
