package githubapi

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v58/github"

	"github.com/temirov/prbaseline/internal/gitdata"
	"github.com/temirov/prbaseline/internal/gitrepo"
)

const (
	operationErrorTemplateConstant   = "%s %s: %s"
	baseURLSuffixConstant            = "/"
	branchRefTemplateConstant        = "refs/heads/%s"
	openStateConstant                = "open"
	base64EncodingConstant           = "base64"
	pageSizeConstant                 = 100
	tokenMissingMessageConstant      = "github token required"
	repositoryMissingMessageConstant = "repository owner and name required"
	invalidBaseURLTemplateConstant   = "invalid api base url %q: %w"
)

// OperationName identifies a REST workflow for error reporting.
type OperationName string

// Operations issued by Client.
const (
	OperationGetTree          OperationName = OperationName("GetTree")
	OperationReadBlob         OperationName = OperationName("ReadBlob")
	OperationCreateBlob       OperationName = OperationName("CreateBlob")
	OperationCreateTree       OperationName = OperationName("CreateTree")
	OperationGetBranchHead    OperationName = OperationName("GetBranchHead")
	OperationCreateCommit     OperationName = OperationName("CreateCommit")
	OperationCreateBranch     OperationName = OperationName("CreateBranch")
	OperationUpdateBranch     OperationName = OperationName("UpdateBranch")
	OperationCompareCommits   OperationName = OperationName("CompareCommits")
	OperationListPullRequests OperationName = OperationName("ListPullRequests")
	OperationCreatePull       OperationName = OperationName("CreatePullRequest")
	OperationUpdatePull       OperationName = OperationName("UpdatePullRequest")
)

var (
	// ErrTokenRequired indicates the client was configured without a token.
	ErrTokenRequired = errors.New(tokenMissingMessageConstant)
	// ErrRepositoryRequired indicates the client was configured without a repository.
	ErrRepositoryRequired = errors.New(repositoryMissingMessageConstant)
)

// OperationError wraps a failed REST call.
type OperationError struct {
	Operation  OperationName
	Repository string
	Cause      error
}

// Error describes the failed call.
func (operationError OperationError) Error() string {
	return fmt.Sprintf(operationErrorTemplateConstant, operationError.Operation, operationError.Repository, operationError.Cause)
}

// Unwrap exposes the underlying go-github error.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// Options configures Client.
type Options struct {
	Repository     gitrepo.RepositoryIdentifier
	Token          string
	BaseURL        string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

// Client talks to one repository through the GitHub REST API.
type Client struct {
	client     *github.Client
	identifier gitrepo.RepositoryIdentifier
	owner      string
	repository string
}

// NewClient constructs an authenticated REST client.
func NewClient(options Options) (*Client, error) {
	if len(strings.TrimSpace(options.Token)) == 0 {
		return nil, ErrTokenRequired
	}
	if len(options.Repository.Owner) == 0 || len(options.Repository.Name) == 0 {
		return nil, ErrRepositoryRequired
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if options.RequestTimeout > 0 {
		timedClient := *httpClient
		timedClient.Timeout = options.RequestTimeout
		httpClient = &timedClient
	}

	restClient := github.NewClient(httpClient).WithAuthToken(strings.TrimSpace(options.Token))
	if trimmedBaseURL := strings.TrimSpace(options.BaseURL); len(trimmedBaseURL) > 0 {
		if !strings.HasSuffix(trimmedBaseURL, baseURLSuffixConstant) {
			trimmedBaseURL += baseURLSuffixConstant
		}
		parsedURL, parseError := url.Parse(trimmedBaseURL)
		if parseError != nil {
			return nil, fmt.Errorf(invalidBaseURLTemplateConstant, options.BaseURL, parseError)
		}
		restClient.BaseURL = parsedURL
	}

	return &Client{
		client:     restClient,
		identifier: options.Repository,
		owner:      options.Repository.Owner,
		repository: options.Repository.Name,
	}, nil
}

func (client *Client) wrap(operation OperationName, cause error) error {
	return OperationError{Operation: operation, Repository: client.identifier.String(), Cause: cause}
}

// GetTreeRecursive lists the tree at the head of branch.
func (client *Client) GetTreeRecursive(executionContext context.Context, branch string) (gitdata.TreeSnapshot, error) {
	tree, _, requestError := client.client.Git.GetTree(executionContext, client.owner, client.repository, branch, true)
	if requestError != nil {
		return gitdata.TreeSnapshot{}, client.wrap(OperationGetTree, requestError)
	}

	entries := make([]gitdata.TreeEntry, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		entries = append(entries, gitdata.TreeEntry{
			Path: entry.GetPath(),
			Kind: gitdata.EntryKind(entry.GetType()),
			Mode: entry.GetMode(),
			SHA:  entry.GetSHA(),
		})
	}
	return gitdata.TreeSnapshot{SHA: tree.GetSHA(), Entries: entries, Truncated: tree.GetTruncated()}, nil
}

// ReadBlob downloads raw blob content.
func (client *Client) ReadBlob(executionContext context.Context, sha string) ([]byte, error) {
	content, _, requestError := client.client.Git.GetBlobRaw(executionContext, client.owner, client.repository, sha)
	if requestError != nil {
		return nil, client.wrap(OperationReadBlob, requestError)
	}
	return content, nil
}

// CreateBlob uploads content as a base64-encoded blob.
func (client *Client) CreateBlob(executionContext context.Context, content []byte) (string, error) {
	blob, _, requestError := client.client.Git.CreateBlob(executionContext, client.owner, client.repository, &github.Blob{
		Content:  github.String(base64.StdEncoding.EncodeToString(content)),
		Encoding: github.String(base64EncodingConstant),
	})
	if requestError != nil {
		return "", client.wrap(OperationCreateBlob, requestError)
	}
	return blob.GetSHA(), nil
}

// CreateTree creates a tree from entries without a base tree.
func (client *Client) CreateTree(executionContext context.Context, entries []gitdata.TreeEntry) (string, error) {
	treeEntries := make([]*github.TreeEntry, 0, len(entries))
	for _, entry := range entries {
		treeEntries = append(treeEntries, &github.TreeEntry{
			Path: github.String(entry.Path),
			Mode: github.String(entry.Mode),
			Type: github.String(string(entry.Kind)),
			SHA:  github.String(entry.SHA),
		})
	}

	tree, _, requestError := client.client.Git.CreateTree(executionContext, client.owner, client.repository, "", treeEntries)
	if requestError != nil {
		return "", client.wrap(OperationCreateTree, requestError)
	}
	return tree.GetSHA(), nil
}

// GetBranchHead resolves the commit branch points at.
func (client *Client) GetBranchHead(executionContext context.Context, branch string) (string, error) {
	reference, _, requestError := client.client.Git.GetRef(executionContext, client.owner, client.repository, fmt.Sprintf(branchRefTemplateConstant, branch))
	if requestError != nil {
		return "", client.wrap(OperationGetBranchHead, requestError)
	}
	return reference.GetObject().GetSHA(), nil
}

// CreateCommit creates a commit with a single parent.
func (client *Client) CreateCommit(executionContext context.Context, request gitdata.CommitRequest) (string, error) {
	commit := &github.Commit{
		Message: github.String(request.Message),
		Tree:    &github.Tree{SHA: github.String(request.TreeSHA)},
	}
	if len(request.ParentSHA) > 0 {
		commit.Parents = []*github.Commit{{SHA: github.String(request.ParentSHA)}}
	}

	createdCommit, _, requestError := client.client.Git.CreateCommit(executionContext, client.owner, client.repository, commit, &github.CreateCommitOptions{})
	if requestError != nil {
		return "", client.wrap(OperationCreateCommit, requestError)
	}
	return createdCommit.GetSHA(), nil
}

// CreateBranch creates refs/heads/<branch> at commitSHA.
func (client *Client) CreateBranch(executionContext context.Context, branch string, commitSHA string) error {
	_, _, requestError := client.client.Git.CreateRef(executionContext, client.owner, client.repository, &github.Reference{
		Ref:    github.String(fmt.Sprintf(branchRefTemplateConstant, branch)),
		Object: &github.GitObject{SHA: github.String(commitSHA)},
	})
	if requestError != nil {
		return client.wrap(OperationCreateBranch, requestError)
	}
	return nil
}

// UpdateBranch force-moves branch to commitSHA.
func (client *Client) UpdateBranch(executionContext context.Context, branch string, commitSHA string) error {
	_, _, requestError := client.client.Git.UpdateRef(executionContext, client.owner, client.repository, &github.Reference{
		Ref:    github.String(fmt.Sprintf(branchRefTemplateConstant, branch)),
		Object: &github.GitObject{SHA: github.String(commitSHA)},
	}, true)
	if requestError != nil {
		return client.wrap(OperationUpdateBranch, requestError)
	}
	return nil
}

// CompareCommits compares baseSHA with headSHA.
func (client *Client) CompareCommits(executionContext context.Context, baseSHA string, headSHA string) (gitdata.CommitComparison, error) {
	comparison, _, requestError := client.client.Repositories.CompareCommits(executionContext, client.owner, client.repository, baseSHA, headSHA, nil)
	if requestError != nil {
		return gitdata.CommitComparison{}, client.wrap(OperationCompareCommits, requestError)
	}
	return gitdata.CommitComparison{Status: comparison.GetStatus(), ChangedFiles: len(comparison.Files)}, nil
}

// ListOpenPullRequests pages through the open pull requests targeting baseBranch.
func (client *Client) ListOpenPullRequests(executionContext context.Context, baseBranch string) ([]gitdata.PullRequest, error) {
	listOptions := &github.PullRequestListOptions{
		State:       openStateConstant,
		Base:        baseBranch,
		ListOptions: github.ListOptions{PerPage: pageSizeConstant},
	}

	var pullRequests []gitdata.PullRequest
	for {
		page, response, requestError := client.client.PullRequests.List(executionContext, client.owner, client.repository, listOptions)
		if requestError != nil {
			return nil, client.wrap(OperationListPullRequests, requestError)
		}
		for _, pullRequest := range page {
			pullRequests = append(pullRequests, convertPullRequest(pullRequest))
		}
		if response == nil || response.NextPage == 0 {
			return pullRequests, nil
		}
		listOptions.Page = response.NextPage
	}
}

// CreatePullRequest opens a pull request.
func (client *Client) CreatePullRequest(executionContext context.Context, request gitdata.NewPullRequest) (gitdata.PullRequest, error) {
	pullRequest, _, requestError := client.client.PullRequests.Create(executionContext, client.owner, client.repository, &github.NewPullRequest{
		Title: github.String(request.Title),
		Head:  github.String(request.HeadBranch),
		Base:  github.String(request.BaseBranch),
		Body:  github.String(request.Body),
	})
	if requestError != nil {
		return gitdata.PullRequest{}, client.wrap(OperationCreatePull, requestError)
	}
	return convertPullRequest(pullRequest), nil
}

// UpdatePullRequestBody replaces the body of pull request number.
func (client *Client) UpdatePullRequestBody(executionContext context.Context, number int, body string) error {
	_, _, requestError := client.client.PullRequests.Edit(executionContext, client.owner, client.repository, number, &github.PullRequest{Body: github.String(body)})
	if requestError != nil {
		return client.wrap(OperationUpdatePull, requestError)
	}
	return nil
}

func convertPullRequest(pullRequest *github.PullRequest) gitdata.PullRequest {
	return gitdata.PullRequest{
		Number:     pullRequest.GetNumber(),
		Title:      pullRequest.GetTitle(),
		HeadBranch: pullRequest.GetHead().GetRef(),
		BaseBranch: pullRequest.GetBase().GetRef(),
		URL:        pullRequest.GetHTMLURL(),
	}
}

var _ gitdata.Repository = (*Client)(nil)
