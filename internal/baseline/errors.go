package baseline

import (
	"errors"
	"fmt"
)

const (
	invalidOperationMessageConstant       = "invalid operation"
	configErrorTemplateConstant           = "configuration error for %s: %v"
	ioErrorTemplateConstant               = "i/o error for %s: %v"
	remoteAPIErrorTemplateConstant        = "remote api %s failed: %v"
	remoteAPISubjectErrorTemplateConstant = "remote api %s failed for %s: %v"
	conflictErrorTemplateConstant         = "tree conflict at %s: %s"
)

// ErrInvalidOperation marks configuration values that select an unsupported operation, such as an unknown pipeline kind.
var ErrInvalidOperation = errors.New(invalidOperationMessageConstant)

// ConfigError reports invalid configuration detected before any remote call.
type ConfigError struct {
	Field string
	Cause error
}

// Error describes the configuration failure.
func (configError ConfigError) Error() string {
	return fmt.Sprintf(configErrorTemplateConstant, configError.Field, configError.Cause)
}

// Unwrap exposes the underlying cause.
func (configError ConfigError) Unwrap() error {
	return configError.Cause
}

// IOError reports local file scan or read failures.
type IOError struct {
	Path  string
	Cause error
}

// Error describes the i/o failure.
func (ioError IOError) Error() string {
	return fmt.Sprintf(ioErrorTemplateConstant, ioError.Path, ioError.Cause)
}

// Unwrap exposes the underlying cause.
func (ioError IOError) Unwrap() error {
	return ioError.Cause
}

// RemoteAPIError reports a failing remote repository call.
type RemoteAPIError struct {
	Operation string
	Subject   string
	Cause     error
}

// Error describes the remote failure.
func (remoteError RemoteAPIError) Error() string {
	if len(remoteError.Subject) == 0 {
		return fmt.Sprintf(remoteAPIErrorTemplateConstant, remoteError.Operation, remoteError.Cause)
	}
	return fmt.Sprintf(remoteAPISubjectErrorTemplateConstant, remoteError.Operation, remoteError.Subject, remoteError.Cause)
}

// Unwrap exposes the underlying cause.
func (remoteError RemoteAPIError) Unwrap() error {
	return remoteError.Cause
}

// ConflictError reports a blob and a tree resolving to the same path.
type ConflictError struct {
	Path    string
	Message string
}

// Error describes the conflict.
func (conflictError ConflictError) Error() string {
	return fmt.Sprintf(conflictErrorTemplateConstant, conflictError.Path, conflictError.Message)
}
