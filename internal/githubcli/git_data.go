package githubcli

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/temirov/prbaseline/internal/gitdata"
)

const (
	getTreeOperationName       OperationName = OperationName("GetTree")
	readBlobOperationName      OperationName = OperationName("ReadBlob")
	createBlobOperationName    OperationName = OperationName("CreateBlob")
	createTreeOperationName    OperationName = OperationName("CreateTree")
	getBranchHeadOperationName OperationName = OperationName("GetBranchHead")
	createCommitOperationName  OperationName = OperationName("CreateCommit")
	createBranchOperationName  OperationName = OperationName("CreateBranch")
	updateBranchOperationName  OperationName = OperationName("UpdateBranch")
	compareOperationName       OperationName = OperationName("CompareCommits")

	treeResourceTemplateConstant       = "git/trees/%s?recursive=1"
	blobResourceTemplateConstant       = "git/blobs/%s"
	blobsResourceConstant              = "git/blobs"
	treesResourceConstant              = "git/trees"
	commitsResourceConstant            = "git/commits"
	refsResourceConstant               = "git/refs"
	branchRefResourceTemplateConstant  = "git/ref/heads/%s"
	branchRefsResourceTemplateConstant = "git/refs/heads/%s"
	compareResourceTemplateConstant    = "compare/%s...%s"
	fullBranchRefTemplateConstant      = "refs/heads/%s"
	base64EncodingConstant             = "base64"
	utf8EncodingConstant               = "utf-8"
	branchFieldNameConstant            = "branch"
	shaFieldNameConstant               = "sha"
	unsupportedEncodingTemplate        = "unsupported blob encoding %q"
	pathSegmentSeparatorConstant       = "/"
	base64LineBreakConstant            = "\n"
)

// ErrMissingObjectSHA indicates a creation endpoint responded without an object identifier.
var ErrMissingObjectSHA = errors.New("response did not include a sha")

type treeEntryPayload struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
}

type treeResponse struct {
	SHA       string             `json:"sha"`
	Tree      []treeEntryPayload `json:"tree"`
	Truncated bool               `json:"truncated"`
}

type createTreeRequest struct {
	Tree []treeEntryPayload `json:"tree"`
}

type blobResponse struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type createBlobRequest struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type objectResponse struct {
	SHA string `json:"sha"`
}

type referenceResponse struct {
	Ref    string         `json:"ref"`
	Object objectResponse `json:"object"`
}

type createCommitRequest struct {
	Message string   `json:"message"`
	Tree    string   `json:"tree"`
	Parents []string `json:"parents"`
}

type createReferenceRequest struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

type updateReferenceRequest struct {
	SHA   string `json:"sha"`
	Force bool   `json:"force"`
}

type comparedFile struct {
	Filename string `json:"filename"`
}

type comparisonResponse struct {
	Status string         `json:"status"`
	Files  []comparedFile `json:"files"`
}

// GetTreeRecursive lists the tree at the head of branch recursively.
func (client *Client) GetTreeRecursive(executionContext context.Context, branch string) (gitdata.TreeSnapshot, error) {
	trimmedBranch, validationError := requireValue(branchFieldNameConstant, branch)
	if validationError != nil {
		return gitdata.TreeSnapshot{}, validationError
	}

	var response treeResponse
	resource := fmt.Sprintf(treeResourceTemplateConstant, escapeBranchPath(trimmedBranch))
	if callError := client.callAPI(executionContext, getTreeOperationName, httpMethodGetConstant, resource, nil, &response); callError != nil {
		return gitdata.TreeSnapshot{}, callError
	}

	entries := make([]gitdata.TreeEntry, 0, len(response.Tree))
	for _, entryPayload := range response.Tree {
		entries = append(entries, gitdata.TreeEntry{
			Path: entryPayload.Path,
			Kind: gitdata.EntryKind(entryPayload.Type),
			Mode: entryPayload.Mode,
			SHA:  entryPayload.SHA,
		})
	}

	return gitdata.TreeSnapshot{SHA: response.SHA, Entries: entries, Truncated: response.Truncated}, nil
}

// ReadBlob downloads and decodes blob content.
func (client *Client) ReadBlob(executionContext context.Context, sha string) ([]byte, error) {
	trimmedSHA, validationError := requireValue(shaFieldNameConstant, sha)
	if validationError != nil {
		return nil, validationError
	}

	var response blobResponse
	resource := fmt.Sprintf(blobResourceTemplateConstant, trimmedSHA)
	if callError := client.callAPI(executionContext, readBlobOperationName, httpMethodGetConstant, resource, nil, &response); callError != nil {
		return nil, callError
	}

	switch response.Encoding {
	case base64EncodingConstant:
		decoded, decodingError := base64.StdEncoding.DecodeString(strings.ReplaceAll(response.Content, base64LineBreakConstant, ""))
		if decodingError != nil {
			return nil, ResponseDecodingError{Operation: readBlobOperationName, Cause: decodingError}
		}
		return decoded, nil
	case utf8EncodingConstant:
		return []byte(response.Content), nil
	default:
		return nil, ResponseDecodingError{Operation: readBlobOperationName, Cause: fmt.Errorf(unsupportedEncodingTemplate, response.Encoding)}
	}
}

// CreateBlob uploads content as a base64-encoded blob.
func (client *Client) CreateBlob(executionContext context.Context, content []byte) (string, error) {
	request := createBlobRequest{Content: base64.StdEncoding.EncodeToString(content), Encoding: base64EncodingConstant}
	var response objectResponse
	if callError := client.callAPI(executionContext, createBlobOperationName, httpMethodPostConstant, blobsResourceConstant, request, &response); callError != nil {
		return "", callError
	}
	return requireSHA(createBlobOperationName, response.SHA)
}

// CreateTree creates a single-level tree from entries without a base tree.
func (client *Client) CreateTree(executionContext context.Context, entries []gitdata.TreeEntry) (string, error) {
	request := createTreeRequest{Tree: make([]treeEntryPayload, 0, len(entries))}
	for _, entry := range entries {
		request.Tree = append(request.Tree, treeEntryPayload{
			Path: entry.Path,
			Mode: entry.Mode,
			Type: string(entry.Kind),
			SHA:  entry.SHA,
		})
	}

	var response objectResponse
	if callError := client.callAPI(executionContext, createTreeOperationName, httpMethodPostConstant, treesResourceConstant, request, &response); callError != nil {
		return "", callError
	}
	return requireSHA(createTreeOperationName, response.SHA)
}

// GetBranchHead resolves the commit a branch points at.
func (client *Client) GetBranchHead(executionContext context.Context, branch string) (string, error) {
	trimmedBranch, validationError := requireValue(branchFieldNameConstant, branch)
	if validationError != nil {
		return "", validationError
	}

	var response referenceResponse
	resource := fmt.Sprintf(branchRefResourceTemplateConstant, escapeBranchPath(trimmedBranch))
	if callError := client.callAPI(executionContext, getBranchHeadOperationName, httpMethodGetConstant, resource, nil, &response); callError != nil {
		return "", callError
	}
	return requireSHA(getBranchHeadOperationName, response.Object.SHA)
}

// CreateCommit creates a commit with a single parent.
func (client *Client) CreateCommit(executionContext context.Context, request gitdata.CommitRequest) (string, error) {
	payload := createCommitRequest{Message: request.Message, Tree: request.TreeSHA, Parents: []string{}}
	if len(request.ParentSHA) > 0 {
		payload.Parents = append(payload.Parents, request.ParentSHA)
	}

	var response objectResponse
	if callError := client.callAPI(executionContext, createCommitOperationName, httpMethodPostConstant, commitsResourceConstant, payload, &response); callError != nil {
		return "", callError
	}
	return requireSHA(createCommitOperationName, response.SHA)
}

// CreateBranch creates refs/heads/<branch> at commitSHA.
func (client *Client) CreateBranch(executionContext context.Context, branch string, commitSHA string) error {
	trimmedBranch, validationError := requireValue(branchFieldNameConstant, branch)
	if validationError != nil {
		return validationError
	}
	payload := createReferenceRequest{Ref: fmt.Sprintf(fullBranchRefTemplateConstant, trimmedBranch), SHA: commitSHA}
	return client.callAPI(executionContext, createBranchOperationName, httpMethodPostConstant, refsResourceConstant, payload, nil)
}

// UpdateBranch force-moves branch to commitSHA.
func (client *Client) UpdateBranch(executionContext context.Context, branch string, commitSHA string) error {
	trimmedBranch, validationError := requireValue(branchFieldNameConstant, branch)
	if validationError != nil {
		return validationError
	}
	payload := updateReferenceRequest{SHA: commitSHA, Force: true}
	resource := fmt.Sprintf(branchRefsResourceTemplateConstant, escapeBranchPath(trimmedBranch))
	return client.callAPI(executionContext, updateBranchOperationName, httpMethodPatchConstant, resource, payload, nil)
}

// CompareCommits compares baseSHA with headSHA.
func (client *Client) CompareCommits(executionContext context.Context, baseSHA string, headSHA string) (gitdata.CommitComparison, error) {
	var response comparisonResponse
	resource := fmt.Sprintf(compareResourceTemplateConstant, baseSHA, headSHA)
	if callError := client.callAPI(executionContext, compareOperationName, httpMethodGetConstant, resource, nil, &response); callError != nil {
		return gitdata.CommitComparison{}, callError
	}
	return gitdata.CommitComparison{Status: response.Status, ChangedFiles: len(response.Files)}, nil
}

func requireValue(fieldName string, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return "", InvalidInputError{FieldName: fieldName, Message: requiredValueMessageConstant}
	}
	return trimmed, nil
}

func requireSHA(operation OperationName, sha string) (string, error) {
	if len(strings.TrimSpace(sha)) == 0 {
		return "", OperationError{Operation: operation, Cause: ErrMissingObjectSHA}
	}
	return sha, nil
}

// escapeBranchPath escapes each branch name segment while keeping separators literal.
func escapeBranchPath(branch string) string {
	segments := strings.Split(branch, pathSegmentSeparatorConstant)
	for segmentIndex := range segments {
		segments[segmentIndex] = url.PathEscape(segments[segmentIndex])
	}
	return strings.Join(segments, pathSegmentSeparatorConstant)
}
