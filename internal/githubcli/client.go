package githubcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/prbaseline/internal/execshell"
)

const (
	apiSubcommandConstant                   = "api"
	methodFlagConstant                      = "--method"
	inputFlagConstant                       = "--input"
	stdinReferenceConstant                  = "-"
	acceptHeaderFlagConstant                = "-H"
	acceptHeaderValueConstant               = "Accept: application/vnd.github+json"
	repositoryFieldNameConstant             = "repository"
	requiredValueMessageConstant            = "value required"
	executorNotConfiguredMessageConstant    = "github cli executor not configured"
	operationErrorMessageTemplateConstant   = "%s operation failed"
	operationErrorWithCauseTemplateConstant = "%s operation failed: %s"
	responseDecodingErrorTemplateConstant   = "%s response decoding failed: %s"
	payloadEncodingErrorTemplateConstant    = "%s payload encoding failed: %s"
	invalidInputErrorTemplateConstant       = "%s: %s"
	repositoryEndpointTemplateConstant      = "repos/%s/%s"
	httpMethodGetConstant                   = "GET"
	httpMethodPostConstant                  = "POST"
	httpMethodPatchConstant                 = "PATCH"
)

// OperationName describes a named GitHub CLI workflow supported by the client.
type OperationName string

// GitHubCommandExecutor is the minimal interface required from execshell.ShellExecutor.
type GitHubCommandExecutor interface {
	ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Client talks to one GitHub repository through gh api.
type Client struct {
	executor   GitHubCommandExecutor
	repository string
}

var (
	// ErrExecutorNotConfigured indicates the client was constructed without an executor.
	ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
)

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps execution issues for GitHub CLI operations.
type OperationError struct {
	Operation OperationName
	Cause     error
}

// Error describes the operation failure.
func (operationError OperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(operationErrorMessageTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(operationErrorWithCauseTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// ResponseDecodingError indicates JSON decoding failures.
type ResponseDecodingError struct {
	Operation OperationName
	Cause     error
}

// Error describes the decoding failure.
func (decodingError ResponseDecodingError) Error() string {
	return fmt.Sprintf(responseDecodingErrorTemplateConstant, decodingError.Operation, decodingError.Cause)
}

// Unwrap exposes the underlying JSON error.
func (decodingError ResponseDecodingError) Unwrap() error {
	return decodingError.Cause
}

// PayloadEncodingError indicates JSON encoding issues.
type PayloadEncodingError struct {
	Operation OperationName
	Cause     error
}

// Error describes the encoding failure.
func (encodingError PayloadEncodingError) Error() string {
	return fmt.Sprintf(payloadEncodingErrorTemplateConstant, encodingError.Operation, encodingError.Cause)
}

// Unwrap exposes the underlying error.
func (encodingError PayloadEncodingError) Unwrap() error {
	return encodingError.Cause
}

// NewClient constructs a GitHub CLI client bound to repository (owner/name).
func NewClient(executor GitHubCommandExecutor, repository string) (*Client, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return nil, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	return &Client{executor: executor, repository: repositoryIdentifier}, nil
}

// Repository reports the owner/name the client is bound to.
func (client *Client) Repository() string {
	return client.repository
}

// callAPI issues "gh api" against a repository-relative endpoint, sending payload
// as the JSON request body when present and decoding the JSON response into response.
func (client *Client) callAPI(executionContext context.Context, operation OperationName, method string, resource string, payload any, response any) error {
	commandDetails := client.apiCommandDetails(method, resource)

	if payload != nil {
		payloadBytes, encodingError := json.Marshal(payload)
		if encodingError != nil {
			return PayloadEncodingError{Operation: operation, Cause: encodingError}
		}
		commandDetails.Arguments = append(commandDetails.Arguments, inputFlagConstant, stdinReferenceConstant)
		commandDetails.StandardInput = payloadBytes
	}

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return OperationError{Operation: operation, Cause: executionError}
	}

	if response == nil {
		return nil
	}
	if decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), response); decodingError != nil {
		return ResponseDecodingError{Operation: operation, Cause: decodingError}
	}
	return nil
}

func (client *Client) apiCommandDetails(method string, resource string, extraFlags ...string) execshell.CommandDetails {
	arguments := []string{
		apiSubcommandConstant,
		fmt.Sprintf(repositoryEndpointTemplateConstant, client.repository, resource),
	}
	arguments = append(arguments, extraFlags...)
	arguments = append(arguments, methodFlagConstant, method, acceptHeaderFlagConstant, acceptHeaderValueConstant)
	return execshell.CommandDetails{Arguments: arguments}
}
