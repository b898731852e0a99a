package baseline

import (
	"sort"

	"github.com/samber/lo"
)

// ChangeKey identifies the logical baseline a group of updated files contributes to.
type ChangeKey string

// ChangeSet maps change keys to the local files discovered for them. It is immutable once built.
type ChangeSet struct {
	filesByKey map[ChangeKey][]string
}

// NewChangeSet builds a ChangeSet from the provided grouping, sorting the files of every key.
func NewChangeSet(filesByKey map[ChangeKey][]string) ChangeSet {
	duplicated := make(map[ChangeKey][]string, len(filesByKey))
	for changeKey, filePaths := range filesByKey {
		if len(filePaths) == 0 {
			continue
		}
		sortedPaths := lo.Uniq(filePaths)
		sort.Strings(sortedPaths)
		duplicated[changeKey] = sortedPaths
	}
	return ChangeSet{filesByKey: duplicated}
}

// Keys returns the change keys in lexical order.
func (changeSet ChangeSet) Keys() []ChangeKey {
	changeKeys := lo.Keys(changeSet.filesByKey)
	sort.Slice(changeKeys, func(leftIndex int, rightIndex int) bool {
		return changeKeys[leftIndex] < changeKeys[rightIndex]
	})
	return changeKeys
}

// Files returns the local files grouped under changeKey.
func (changeSet ChangeSet) Files(changeKey ChangeKey) []string {
	filePaths := changeSet.filesByKey[changeKey]
	duplicated := make([]string, len(filePaths))
	copy(duplicated, filePaths)
	return duplicated
}

// Len returns the number of change keys.
func (changeSet ChangeSet) Len() int {
	return len(changeSet.filesByKey)
}

// FileCount returns the number of local files across all keys.
func (changeSet ChangeSet) FileCount() int {
	fileCount := 0
	for _, filePaths := range changeSet.filesByKey {
		fileCount += len(filePaths)
	}
	return fileCount
}
