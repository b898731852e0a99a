package githubcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/temirov/prbaseline/internal/gitdata"
)

const (
	listPullRequestsOperationName  OperationName = OperationName("ListPullRequests")
	createPullRequestOperationName OperationName = OperationName("CreatePullRequest")
	updatePullRequestOperationName OperationName = OperationName("UpdatePullRequest")

	paginateFlagConstant                  = "--paginate"
	stateQueryParameterConstant           = "state"
	baseQueryParameterConstant            = "base"
	perPageQueryParameterConstant         = "per_page"
	openStateConstant                     = "open"
	pullRequestPageSizeConstant           = "100"
	pullsResourceConstant                 = "pulls"
	pullsQueryTemplateConstant            = "pulls?%s"
	pullResourceTemplateConstant          = "pulls/%d"
	baseBranchFieldNameConstant           = "base branch"
	headBranchFieldNameConstant           = "head branch"
	titleFieldNameConstant                = "title"
	pullRequestNumberFieldNameConstant    = "pull request number"
	positiveNumberRequiredMessageConstant = "positive number required"
)

type branchReference struct {
	Ref string `json:"ref"`
}

type pullRequestResponse struct {
	Number  int             `json:"number"`
	Title   string          `json:"title"`
	HTMLURL string          `json:"html_url"`
	Head    branchReference `json:"head"`
	Base    branchReference `json:"base"`
}

type createPullRequestRequest struct {
	Title string `json:"title"`
	Head  string `json:"head"`
	Base  string `json:"base"`
	Body  string `json:"body"`
}

type updatePullRequestRequest struct {
	Body string `json:"body"`
}

// ListOpenPullRequests enumerates every open pull request targeting baseBranch.
// gh api --paginate follows the Link headers and prints one JSON array per page.
func (client *Client) ListOpenPullRequests(executionContext context.Context, baseBranch string) ([]gitdata.PullRequest, error) {
	trimmedBase, validationError := requireValue(baseBranchFieldNameConstant, baseBranch)
	if validationError != nil {
		return nil, validationError
	}

	queryValues := url.Values{}
	queryValues.Set(stateQueryParameterConstant, openStateConstant)
	queryValues.Set(baseQueryParameterConstant, trimmedBase)
	queryValues.Set(perPageQueryParameterConstant, pullRequestPageSizeConstant)
	resource := fmt.Sprintf(pullsQueryTemplateConstant, queryValues.Encode())

	commandDetails := client.apiCommandDetails(httpMethodGetConstant, resource, paginateFlagConstant)
	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return nil, OperationError{Operation: listPullRequestsOperationName, Cause: executionError}
	}

	pullRequests := make([]gitdata.PullRequest, 0)
	decoder := json.NewDecoder(strings.NewReader(executionResult.StandardOutput))
	for {
		var page []pullRequestResponse
		decodingError := decoder.Decode(&page)
		if errors.Is(decodingError, io.EOF) {
			break
		}
		if decodingError != nil {
			return nil, ResponseDecodingError{Operation: listPullRequestsOperationName, Cause: decodingError}
		}
		for _, pullRequestEntry := range page {
			pullRequests = append(pullRequests, gitdata.PullRequest{
				Number:     pullRequestEntry.Number,
				Title:      pullRequestEntry.Title,
				HeadBranch: pullRequestEntry.Head.Ref,
				BaseBranch: pullRequestEntry.Base.Ref,
				URL:        pullRequestEntry.HTMLURL,
			})
		}
	}

	return pullRequests, nil
}

// CreatePullRequest opens a pull request from request.HeadBranch into request.BaseBranch.
func (client *Client) CreatePullRequest(executionContext context.Context, request gitdata.NewPullRequest) (gitdata.PullRequest, error) {
	if _, validationError := requireValue(titleFieldNameConstant, request.Title); validationError != nil {
		return gitdata.PullRequest{}, validationError
	}
	if _, validationError := requireValue(headBranchFieldNameConstant, request.HeadBranch); validationError != nil {
		return gitdata.PullRequest{}, validationError
	}
	if _, validationError := requireValue(baseBranchFieldNameConstant, request.BaseBranch); validationError != nil {
		return gitdata.PullRequest{}, validationError
	}

	payload := createPullRequestRequest{
		Title: request.Title,
		Head:  request.HeadBranch,
		Base:  request.BaseBranch,
		Body:  request.Body,
	}

	var response pullRequestResponse
	if callError := client.callAPI(executionContext, createPullRequestOperationName, httpMethodPostConstant, pullsResourceConstant, payload, &response); callError != nil {
		return gitdata.PullRequest{}, callError
	}

	return gitdata.PullRequest{
		Number:     response.Number,
		Title:      response.Title,
		HeadBranch: response.Head.Ref,
		BaseBranch: response.Base.Ref,
		URL:        response.HTMLURL,
	}, nil
}

// UpdatePullRequestBody replaces the body of pull request number.
func (client *Client) UpdatePullRequestBody(executionContext context.Context, number int, body string) error {
	if number <= 0 {
		return InvalidInputError{FieldName: pullRequestNumberFieldNameConstant, Message: positiveNumberRequiredMessageConstant}
	}
	resource := fmt.Sprintf(pullResourceTemplateConstant, number)
	return client.callAPI(executionContext, updatePullRequestOperationName, httpMethodPatchConstant, resource, updatePullRequestRequest{Body: body}, nil)
}

var _ gitdata.Repository = (*Client)(nil)
