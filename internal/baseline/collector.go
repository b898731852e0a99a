package baseline

import (
	"errors"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	// DefaultUpdatedFilePrefixConstant marks files produced by a test run that carry updated baselines.
	DefaultUpdatedFilePrefixConstant = "Updated"

	recursivePatternPrefixConstant      = "**/"
	wildcardSuffixConstant              = "*"
	keySeparatorConstant                = "."
	globMetaCharactersConstant          = "*?[]{}\\"
	updatedFilePrefixFieldConstant      = "updated_file_prefix"
	scanRootNotDirectoryMessageConstant = "scan root is not a directory"
	prefixRequiredMessageConstant       = "updated file prefix must be provided"
	prefixMetaCharactersMessageConstant = "updated file prefix must not contain glob meta characters"
	emptyChangeKeyMessageConstant       = "skipping updated file without a change key"
	collectedFilesMessageConstant       = "collected updated files"
	logFieldPathConstant                = "path"
	logFieldScanRootConstant            = "scan_root"
	logFieldKeyCountConstant            = "key_count"
	logFieldFileCountConstant           = "file_count"
)

var (
	// ErrScanRootNotDirectory indicates the scan root exists but is not a directory.
	ErrScanRootNotDirectory = errors.New(scanRootNotDirectoryMessageConstant)
	errPrefixRequired       = errors.New(prefixRequiredMessageConstant)
	errPrefixMetaCharacters = errors.New(prefixMetaCharactersMessageConstant)
)

// Collector discovers updated files beneath a scan root.
type Collector struct {
	fileSystem afero.Fs
	filePrefix string
	logger     *zap.Logger
}

type collectedFile struct {
	changeKey ChangeKey
	filePath  string
}

// NewCollector constructs a Collector matching files whose base name starts with filePrefix.
func NewCollector(fileSystem afero.Fs, filePrefix string, logger *zap.Logger) (*Collector, error) {
	trimmedPrefix := strings.TrimSpace(filePrefix)
	if len(trimmedPrefix) == 0 {
		return nil, ConfigError{Field: updatedFilePrefixFieldConstant, Cause: errPrefixRequired}
	}
	if strings.ContainsAny(trimmedPrefix, globMetaCharactersConstant) {
		return nil, ConfigError{Field: updatedFilePrefixFieldConstant, Cause: errPrefixMetaCharacters}
	}
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{fileSystem: fileSystem, filePrefix: trimmedPrefix, logger: logger}, nil
}

// Collect recursively enumerates updated files under scanRoot and groups them by change key.
// Relative roots are resolved against the working directory first.
func (collector *Collector) Collect(scanRoot string) (ChangeSet, error) {
	requestedRoot := scanRoot
	scanRoot, absoluteError := filepath.Abs(requestedRoot)
	if absoluteError != nil {
		return ChangeSet{}, IOError{Path: requestedRoot, Cause: absoluteError}
	}
	rootInfo, statError := collector.fileSystem.Stat(scanRoot)
	if statError != nil {
		return ChangeSet{}, IOError{Path: scanRoot, Cause: statError}
	}
	if !rootInfo.IsDir() {
		return ChangeSet{}, IOError{Path: scanRoot, Cause: ErrScanRootNotDirectory}
	}

	scanFileSystem := afero.NewIOFS(afero.NewBasePathFs(collector.fileSystem, scanRoot))
	matches, globError := doublestar.Glob(
		scanFileSystem,
		recursivePatternPrefixConstant+collector.filePrefix+wildcardSuffixConstant,
		doublestar.WithFilesOnly(),
		doublestar.WithFailOnIOErrors(),
	)
	if globError != nil {
		return ChangeSet{}, IOError{Path: scanRoot, Cause: globError}
	}

	collectedFiles := make([]collectedFile, 0, len(matches))
	for _, relativeMatch := range matches {
		changeKey := collector.deriveChangeKey(path.Base(relativeMatch))
		absolutePath := filepath.Join(scanRoot, filepath.FromSlash(relativeMatch))
		if len(changeKey) == 0 {
			collector.logger.Warn(emptyChangeKeyMessageConstant, zap.String(logFieldPathConstant, absolutePath))
			continue
		}
		collectedFiles = append(collectedFiles, collectedFile{changeKey: changeKey, filePath: absolutePath})
	}

	groupedFiles := lo.GroupBy(collectedFiles, func(file collectedFile) ChangeKey {
		return file.changeKey
	})
	filesByKey := lo.MapValues(groupedFiles, func(files []collectedFile, _ ChangeKey) []string {
		return lo.Map(files, func(file collectedFile, _ int) string {
			return file.filePath
		})
	})

	changeSet := NewChangeSet(filesByKey)
	collector.logger.Info(
		collectedFilesMessageConstant,
		zap.String(logFieldScanRootConstant, scanRoot),
		zap.Int(logFieldKeyCountConstant, changeSet.Len()),
		zap.Int(logFieldFileCountConstant, changeSet.FileCount()),
	)
	return changeSet, nil
}

// PublishedFileName returns the base name an updated file is published under.
func PublishedFileName(filePath string, filePrefix string) string {
	return strings.TrimPrefix(filepath.Base(filePath), filePrefix)
}

func (collector *Collector) deriveChangeKey(baseName string) ChangeKey {
	keyCandidate := strings.TrimPrefix(baseName, collector.filePrefix)
	if separatorIndex := strings.Index(keyCandidate, keySeparatorConstant); separatorIndex >= 0 {
		keyCandidate = keyCandidate[:separatorIndex]
	}
	return ChangeKey(keyCandidate)
}
