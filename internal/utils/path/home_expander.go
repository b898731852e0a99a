package pathutils

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	tildeSymbolConstant             = "~"
	tildeForwardSlashPrefixConstant = "~/"
)

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// HomeExpander converts user home shortcuts in configured local paths to absolute paths.
type HomeExpander struct {
	homeDirectoryProvider HomeDirectoryProvider
	homeDirectory         string
	homeDirectoryError    error
	initializationGuard   sync.Once
}

// NewHomeExpander constructs a HomeExpander using the operating system lookup.
func NewHomeExpander() *HomeExpander {
	return NewHomeExpanderWithProvider(os.UserHomeDir)
}

// NewHomeExpanderWithProvider constructs a HomeExpander with a custom provider.
func NewHomeExpanderWithProvider(provider HomeDirectoryProvider) *HomeExpander {
	if provider == nil {
		provider = os.UserHomeDir
	}
	return &HomeExpander{homeDirectoryProvider: provider}
}

// Expand resolves a leading tilde to the user's home directory. Paths without one,
// and paths naming another user's home, are returned unchanged.
func (expander *HomeExpander) Expand(candidatePath string) string {
	trimmedPath := strings.TrimSpace(candidatePath)
	if expander == nil || !strings.HasPrefix(trimmedPath, tildeSymbolConstant) {
		return candidatePath
	}

	relativePath, isHomeRelative := homeRelativePath(trimmedPath)
	if !isHomeRelative {
		return candidatePath
	}

	expander.initializationGuard.Do(func() {
		expander.homeDirectory, expander.homeDirectoryError = expander.homeDirectoryProvider()
	})
	if expander.homeDirectoryError != nil || len(expander.homeDirectory) == 0 {
		return candidatePath
	}
	return filepath.Join(expander.homeDirectory, relativePath)
}

// ExpandAll expands every optional path, leaving empty values empty.
func (expander *HomeExpander) ExpandAll(candidatePaths ...*string) {
	for _, candidatePath := range candidatePaths {
		if candidatePath == nil || len(strings.TrimSpace(*candidatePath)) == 0 {
			continue
		}
		*candidatePath = expander.Expand(*candidatePath)
	}
}

func homeRelativePath(trimmedPath string) (string, bool) {
	if trimmedPath == tildeSymbolConstant {
		return "", true
	}
	if strings.HasPrefix(trimmedPath, tildeForwardSlashPrefixConstant) {
		return strings.TrimPrefix(trimmedPath, tildeForwardSlashPrefixConstant), true
	}
	separatorPrefix := tildeSymbolConstant + string(os.PathSeparator)
	if strings.HasPrefix(trimmedPath, separatorPrefix) {
		return strings.TrimPrefix(trimmedPath, separatorPrefix), true
	}
	return "", false
}
