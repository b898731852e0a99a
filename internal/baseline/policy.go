package baseline

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	// DefaultExclusionsMarkerConstant selects change keys reconciled as exclusion lists.
	DefaultExclusionsMarkerConstant = "Exclusions"
	// LicenseEmptyBaselineSentinelConstant is the content of a license baseline that lists no files.
	LicenseEmptyBaselineSentinelConstant = "{\n  \"files\": []\n}"

	exclusionFileExtensionConstant      = ".txt"
	sdkBaselineDirectoryConstant        = "baselines"
	licenseBaselineDirectoryConstant    = "baselines/licenses"
	pipelineFieldConstant               = "pipeline"
	unsupportedPipelineTemplateConstant = "%w: unsupported pipeline %q"
	duplicateOutputPathMessageConstant  = "multiple updated files publish to the same path; keeping the last"
	reconciledKeyMessageConstant        = "reconciled change key"
	logFieldChangeKeyConstant           = "change_key"
	logFieldOutputPathConstant          = "output_path"
	logFieldAbsentConstant              = "absent"
	logFieldPipelineConstant            = "pipeline"
)

// PipelineKind selects the reconciliation policy.
type PipelineKind string

// Supported pipeline kinds.
const (
	PipelineKindSdk     PipelineKind = PipelineKind("Sdk")
	PipelineKindLicense PipelineKind = PipelineKind("License")
)

// ParsePipelineKind resolves a pipeline kind case-insensitively.
func ParsePipelineKind(value string) (PipelineKind, error) {
	trimmedValue := strings.TrimSpace(value)
	for _, candidate := range []PipelineKind{PipelineKindSdk, PipelineKindLicense} {
		if strings.EqualFold(trimmedValue, string(candidate)) {
			return candidate, nil
		}
	}
	return "", ConfigError{Field: pipelineFieldConstant, Cause: fmt.Errorf(unsupportedPipelineTemplateConstant, ErrInvalidOperation, value)}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (kind *PipelineKind) UnmarshalText(text []byte) error {
	parsedKind, parseError := ParsePipelineKind(string(text))
	if parseError != nil {
		return parseError
	}
	*kind = parsedKind
	return nil
}

// ReconciliationPolicy decides the content published for every change key.
type ReconciliationPolicy interface {
	Kind() PipelineKind
	// Reconcile returns one result per published path. current is the existing
	// entry listing relative to the mount path and is never modified.
	Reconcile(executionContext context.Context, changes ChangeSet, current EntrySet) ([]ReconciliationResult, error)
}

// PolicyOptions configures reconciliation policies.
type PolicyOptions struct {
	FileSystem       afero.Fs
	BlobReader       BlobReader
	FilePrefix       string
	ExclusionsMarker string
	Logger           *zap.Logger
}

// NewPolicy returns the reconciliation policy for kind.
func NewPolicy(kind PipelineKind, options PolicyOptions) (ReconciliationPolicy, error) {
	base := newPolicyBase(options)
	switch kind {
	case PipelineKindSdk:
		base.directDirectory = sdkBaselineDirectoryConstant
		return &SdkPolicy{policyBase: base}, nil
	case PipelineKindLicense:
		base.directDirectory = licenseBaselineDirectoryConstant
		base.emptySentinel = LicenseEmptyBaselineSentinelConstant
		base.sentinelEnabled = true
		return &LicensePolicy{policyBase: base}, nil
	default:
		return nil, ConfigError{Field: pipelineFieldConstant, Cause: fmt.Errorf(unsupportedPipelineTemplateConstant, ErrInvalidOperation, kind)}
	}
}

type policyBase struct {
	fileSystem       afero.Fs
	blobReader       BlobReader
	filePrefix       string
	exclusionsMarker string
	logger           *zap.Logger
	directDirectory  string
	emptySentinel    string
	sentinelEnabled  bool
}

type keyReconciler func(executionContext context.Context, changeKey ChangeKey, contents [][]byte, current EntrySet) (ReconciliationResult, error)

func newPolicyBase(options PolicyOptions) policyBase {
	base := policyBase{
		fileSystem:       options.FileSystem,
		blobReader:       options.BlobReader,
		filePrefix:       strings.TrimSpace(options.FilePrefix),
		exclusionsMarker: strings.TrimSpace(options.ExclusionsMarker),
		logger:           options.Logger,
	}
	if base.fileSystem == nil {
		base.fileSystem = afero.NewOsFs()
	}
	if len(base.filePrefix) == 0 {
		base.filePrefix = DefaultUpdatedFilePrefixConstant
	}
	if len(base.exclusionsMarker) == 0 {
		base.exclusionsMarker = DefaultExclusionsMarkerConstant
	}
	if base.logger == nil {
		base.logger = zap.NewNop()
	}
	return base
}

func (base policyBase) isExclusionKey(changeKey ChangeKey) bool {
	return strings.Contains(string(changeKey), base.exclusionsMarker)
}

func (base policyBase) exclusionPath(changeKey ChangeKey) string {
	return string(changeKey) + exclusionFileExtensionConstant
}

// reconcile reads every file of the change set, then dispatches exclusion keys
// to reconcileExclusions and all other keys to direct replacement.
func (base policyBase) reconcile(executionContext context.Context, kind PipelineKind, changes ChangeSet, current EntrySet, reconcileExclusions keyReconciler) ([]ReconciliationResult, error) {
	contentsByPath, readError := base.readAll(changes)
	if readError != nil {
		return nil, readError
	}

	results := make([]ReconciliationResult, 0, changes.FileCount())
	for _, changeKey := range changes.Keys() {
		if contextError := executionContext.Err(); contextError != nil {
			return nil, contextError
		}
		filePaths := changes.Files(changeKey)
		if base.isExclusionKey(changeKey) {
			contents := make([][]byte, 0, len(filePaths))
			for _, filePath := range filePaths {
				contents = append(contents, contentsByPath[filePath])
			}
			result, reconcileError := reconcileExclusions(executionContext, changeKey, contents, current)
			if reconcileError != nil {
				return nil, reconcileError
			}
			results = append(results, result)
			continue
		}
		for _, filePath := range filePaths {
			results = append(results, base.directResult(changeKey, filePath, contentsByPath[filePath]))
		}
	}

	finalResults := base.deduplicate(results)
	for _, result := range finalResults {
		base.logger.Debug(
			reconciledKeyMessageConstant,
			zap.String(logFieldPipelineConstant, string(kind)),
			zap.String(logFieldChangeKeyConstant, string(result.Key)),
			zap.String(logFieldOutputPathConstant, result.Path),
			zap.Bool(logFieldAbsentConstant, result.Absent),
		)
	}
	return finalResults, nil
}

func (base policyBase) readAll(changes ChangeSet) (map[string][]byte, error) {
	contentsByPath := make(map[string][]byte, changes.FileCount())
	var readErrors *multierror.Error
	for _, changeKey := range changes.Keys() {
		for _, filePath := range changes.Files(changeKey) {
			content, readError := afero.ReadFile(base.fileSystem, filePath)
			if readError != nil {
				readErrors = multierror.Append(readErrors, IOError{Path: filePath, Cause: readError})
				continue
			}
			contentsByPath[filePath] = content
		}
	}
	if aggregatedError := readErrors.ErrorOrNil(); aggregatedError != nil {
		return nil, aggregatedError
	}
	return contentsByPath, nil
}

func (base policyBase) directResult(changeKey ChangeKey, filePath string, content []byte) ReconciliationResult {
	outputPath := path.Join(base.directDirectory, PublishedFileName(filePath, base.filePrefix))
	if base.sentinelEnabled && string(content) == base.emptySentinel {
		return ReconciliationResult{Key: changeKey, Path: outputPath, Absent: true}
	}
	return ReconciliationResult{Key: changeKey, Path: outputPath, Content: content}
}

// deduplicate keeps the last result for every output path.
func (base policyBase) deduplicate(results []ReconciliationResult) []ReconciliationResult {
	lastIndexByPath := make(map[string]int, len(results))
	for resultIndex, result := range results {
		if _, exists := lastIndexByPath[result.Path]; exists {
			base.logger.Warn(
				duplicateOutputPathMessageConstant,
				zap.String(logFieldOutputPathConstant, result.Path),
				zap.String(logFieldChangeKeyConstant, string(result.Key)),
			)
		}
		lastIndexByPath[result.Path] = resultIndex
	}
	if len(lastIndexByPath) == len(results) {
		return results
	}
	deduplicated := make([]ReconciliationResult, 0, len(lastIndexByPath))
	for resultIndex, result := range results {
		if lastIndexByPath[result.Path] == resultIndex {
			deduplicated = append(deduplicated, result)
		}
	}
	return deduplicated
}
