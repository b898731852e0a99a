package baseline

import (
	"context"
	"sort"
	"strings"

	"github.com/temirov/prbaseline/internal/gitdata"
)

const (
	pathSeparatorConstant         = "/"
	readBlobOperationNameConstant = "read blob"
)

// BlobReader reads blob content by identifier.
type BlobReader interface {
	ReadBlob(executionContext context.Context, sha string) ([]byte, error)
}

// EntryItem is one entry of an EntrySet. Pending items carry local content that
// has not been uploaded yet and have no SHA.
type EntryItem struct {
	Entry   gitdata.TreeEntry
	Content []byte
	Pending bool
}

// ReconciliationResult is the content decided for one published path. Absent requests deletion.
type ReconciliationResult struct {
	Key     ChangeKey
	Path    string
	Content []byte
	Absent  bool
}

// EntrySet is an immutable flat listing of tree entries keyed by path, together
// with the set of paths modified since it was loaded.
type EntrySet struct {
	items   map[string]EntryItem
	touched map[string]struct{}
}

// NewEntrySet builds an EntrySet from a flat listing of existing entries.
func NewEntrySet(entries []gitdata.TreeEntry) EntrySet {
	entrySet := EntrySet{
		items:   make(map[string]EntryItem, len(entries)),
		touched: map[string]struct{}{},
	}
	for _, entry := range entries {
		entrySet.items[entry.Path] = EntryItem{Entry: entry}
	}
	return entrySet
}

// NewEntrySetUnderPath builds an EntrySet from the entries of snapshot located
// below mountPath, with paths made relative to mountPath.
func NewEntrySetUnderPath(snapshot gitdata.TreeSnapshot, mountPath string) EntrySet {
	normalizedMountPath := NormalizeTreePath(mountPath)
	if len(normalizedMountPath) == 0 {
		return NewEntrySet(snapshot.Entries)
	}
	mountPrefix := normalizedMountPath + pathSeparatorConstant
	relativeEntries := make([]gitdata.TreeEntry, 0, len(snapshot.Entries))
	for _, entry := range snapshot.Entries {
		if !strings.HasPrefix(entry.Path, mountPrefix) {
			continue
		}
		relativeEntry := entry
		relativeEntry.Path = strings.TrimPrefix(entry.Path, mountPrefix)
		relativeEntries = append(relativeEntries, relativeEntry)
	}
	return NewEntrySet(relativeEntries)
}

// NormalizeTreePath trims surrounding separators and whitespace from a tree path.
func NormalizeTreePath(treePath string) string {
	return strings.Trim(strings.TrimSpace(treePath), pathSeparatorConstant)
}

// Len returns the number of entries.
func (entrySet EntrySet) Len() int {
	return len(entrySet.items)
}

// Lookup returns the entry stored at entryPath.
func (entrySet EntrySet) Lookup(entryPath string) (EntryItem, bool) {
	item, exists := entrySet.items[entryPath]
	return item, exists
}

// Items returns every entry ordered by path.
func (entrySet EntrySet) Items() []EntryItem {
	items := make([]EntryItem, 0, len(entrySet.items))
	for _, item := range entrySet.items {
		items = append(items, item)
	}
	sort.Slice(items, func(leftIndex int, rightIndex int) bool {
		return items[leftIndex].Entry.Path < items[rightIndex].Entry.Path
	})
	return items
}

// Touched returns the modified paths in lexical order.
func (entrySet EntrySet) Touched() []string {
	touchedPaths := make([]string, 0, len(entrySet.touched))
	for touchedPath := range entrySet.touched {
		touchedPaths = append(touchedPaths, touchedPath)
	}
	sort.Strings(touchedPaths)
	return touchedPaths
}

// WithContent returns a copy of the set in which entryPath holds content awaiting upload.
func (entrySet EntrySet) WithContent(entryPath string, content []byte) EntrySet {
	updated := entrySet.clone()
	updated.putContent(entryPath, content)
	return updated
}

// WithEntry returns a copy of the set in which entry replaces whatever was stored at its path.
func (entrySet EntrySet) WithEntry(entry gitdata.TreeEntry) EntrySet {
	updated := entrySet.clone()
	updated.items[entry.Path] = EntryItem{Entry: entry}
	updated.touched[entry.Path] = struct{}{}
	return updated
}

// Without returns a copy of the set with entryPath removed. Removing a missing path leaves the set untouched.
func (entrySet EntrySet) Without(entryPath string) EntrySet {
	if _, exists := entrySet.items[entryPath]; !exists {
		return entrySet
	}
	updated := entrySet.clone()
	updated.remove(entryPath)
	return updated
}

// Apply returns a copy of the set with every reconciliation result applied in order.
func (entrySet EntrySet) Apply(results []ReconciliationResult) EntrySet {
	if len(results) == 0 {
		return entrySet
	}
	updated := entrySet.clone()
	for _, result := range results {
		if result.Absent {
			updated.remove(result.Path)
			continue
		}
		updated.putContent(result.Path, result.Content)
	}
	return updated
}

// ReadContent returns the content stored at entryPath, fetching existing blobs through reader.
func (entrySet EntrySet) ReadContent(executionContext context.Context, entryPath string, reader BlobReader) ([]byte, bool, error) {
	item, exists := entrySet.items[entryPath]
	if !exists || item.Entry.IsTree() {
		return nil, false, nil
	}
	if item.Pending {
		return item.Content, true, nil
	}
	content, readError := reader.ReadBlob(executionContext, item.Entry.SHA)
	if readError != nil {
		return nil, false, RemoteAPIError{Operation: readBlobOperationNameConstant, Subject: entryPath, Cause: readError}
	}
	return content, true, nil
}

func (entrySet EntrySet) putContent(entryPath string, content []byte) {
	duplicatedContent := make([]byte, len(content))
	copy(duplicatedContent, content)
	entrySet.items[entryPath] = EntryItem{
		Entry: gitdata.TreeEntry{
			Path: entryPath,
			Kind: gitdata.EntryKindBlob,
			Mode: gitdata.BlobModeConstant,
		},
		Content: duplicatedContent,
		Pending: true,
	}
	entrySet.touched[entryPath] = struct{}{}
}

func (entrySet EntrySet) remove(entryPath string) {
	if _, exists := entrySet.items[entryPath]; !exists {
		return
	}
	delete(entrySet.items, entryPath)
	entrySet.touched[entryPath] = struct{}{}
}

func (entrySet EntrySet) clone() EntrySet {
	duplicated := EntrySet{
		items:   make(map[string]EntryItem, len(entrySet.items)),
		touched: make(map[string]struct{}, len(entrySet.touched)),
	}
	for entryPath, item := range entrySet.items {
		duplicated.items[entryPath] = item
	}
	for touchedPath := range entrySet.touched {
		duplicated.touched[touchedPath] = struct{}{}
	}
	return duplicated
}

// Under returns the entries located below basePath with paths made relative to it.
func (entrySet EntrySet) Under(basePath string) EntrySet {
	normalizedBasePath := NormalizeTreePath(basePath)
	if len(normalizedBasePath) == 0 {
		return entrySet
	}
	basePrefix := normalizedBasePath + pathSeparatorConstant
	relative := EntrySet{items: map[string]EntryItem{}, touched: map[string]struct{}{}}
	for entryPath, item := range entrySet.items {
		if !strings.HasPrefix(entryPath, basePrefix) {
			continue
		}
		relativeItem := item
		relativeItem.Entry.Path = strings.TrimPrefix(entryPath, basePrefix)
		relative.items[relativeItem.Entry.Path] = relativeItem
	}
	for touchedPath := range entrySet.touched {
		if strings.HasPrefix(touchedPath, basePrefix) {
			relative.touched[strings.TrimPrefix(touchedPath, basePrefix)] = struct{}{}
		}
	}
	return relative
}

func (entrySet EntrySet) withTouched(entryPath string) EntrySet {
	updated := entrySet.clone()
	updated.touched[entryPath] = struct{}{}
	return updated
}
