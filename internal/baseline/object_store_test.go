package baseline_test

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/temirov/prbaseline/internal/gitdata"
)

// memoryObjectStore is a content-addressed stand-in for the remote object store.
type memoryObjectStore struct {
	guard        sync.Mutex
	blobs        map[string][]byte
	trees        map[string][]gitdata.TreeEntry
	createdTrees []string
	blobError    error
	treeError    error
	readCount    int
}

func newMemoryObjectStore() *memoryObjectStore {
	return &memoryObjectStore{blobs: map[string][]byte{}, trees: map[string][]gitdata.TreeEntry{}}
}

func (store *memoryObjectStore) ReadBlob(_ context.Context, sha string) ([]byte, error) {
	store.guard.Lock()
	defer store.guard.Unlock()
	store.readCount++
	content, exists := store.blobs[sha]
	if !exists {
		return nil, errors.New("blob not found: " + sha)
	}
	return content, nil
}

func (store *memoryObjectStore) CreateBlob(_ context.Context, content []byte) (string, error) {
	if store.blobError != nil {
		return "", store.blobError
	}
	store.guard.Lock()
	defer store.guard.Unlock()
	sha := hashObject("blob", content)
	store.blobs[sha] = append([]byte{}, content...)
	return sha, nil
}

func (store *memoryObjectStore) CreateTree(_ context.Context, entries []gitdata.TreeEntry) (string, error) {
	if store.treeError != nil {
		return "", store.treeError
	}
	store.guard.Lock()
	defer store.guard.Unlock()
	serialized := make([]string, 0, len(entries))
	for _, entry := range entries {
		if strings.Contains(entry.Path, "/") {
			return "", fmt.Errorf("nested path in tree level: %s", entry.Path)
		}
		serialized = append(serialized, fmt.Sprintf("%s %s %s %s", entry.Mode, entry.Kind, entry.SHA, entry.Path))
	}
	sort.Strings(serialized)
	sha := hashObject("tree", []byte(strings.Join(serialized, "\n")))
	store.trees[sha] = append([]gitdata.TreeEntry{}, entries...)
	store.createdTrees = append(store.createdTrees, sha)
	return sha, nil
}

// seedTree stores a nested tree built from path→content pairs and returns its flat snapshot.
func (store *memoryObjectStore) seedTree(files map[string]string) gitdata.TreeSnapshot {
	type directory struct {
		files       map[string]string
		directories map[string]*directory
	}
	newDirectory := func() *directory {
		return &directory{files: map[string]string{}, directories: map[string]*directory{}}
	}
	root := newDirectory()
	for filePath, content := range files {
		segments := strings.Split(filePath, "/")
		current := root
		for _, segment := range segments[:len(segments)-1] {
			child, exists := current.directories[segment]
			if !exists {
				child = newDirectory()
				current.directories[segment] = child
			}
			current = child
		}
		current.files[segments[len(segments)-1]] = content
	}

	snapshotEntries := make([]gitdata.TreeEntry, 0)
	var write func(prefix string, node *directory) string
	write = func(prefix string, node *directory) string {
		levelEntries := make([]gitdata.TreeEntry, 0)
		for name, content := range node.files {
			blobSHA, _ := store.CreateBlob(context.Background(), []byte(content))
			levelEntries = append(levelEntries, gitdata.TreeEntry{Path: name, Kind: gitdata.EntryKindBlob, Mode: gitdata.BlobModeConstant, SHA: blobSHA})
			snapshotEntries = append(snapshotEntries, gitdata.TreeEntry{Path: joinPath(prefix, name), Kind: gitdata.EntryKindBlob, Mode: gitdata.BlobModeConstant, SHA: blobSHA})
		}
		for name, child := range node.directories {
			childSHA := write(joinPath(prefix, name), child)
			levelEntries = append(levelEntries, gitdata.TreeEntry{Path: name, Kind: gitdata.EntryKindTree, Mode: gitdata.TreeModeConstant, SHA: childSHA})
			snapshotEntries = append(snapshotEntries, gitdata.TreeEntry{Path: joinPath(prefix, name), Kind: gitdata.EntryKindTree, Mode: gitdata.TreeModeConstant, SHA: childSHA})
		}
		treeSHA, _ := store.CreateTree(context.Background(), levelEntries)
		return treeSHA
	}
	rootSHA := write("", root)
	store.createdTrees = nil

	sort.Slice(snapshotEntries, func(leftIndex int, rightIndex int) bool {
		return snapshotEntries[leftIndex].Path < snapshotEntries[rightIndex].Path
	})
	return gitdata.TreeSnapshot{SHA: rootSHA, Entries: snapshotEntries}
}

// flatten lists the tree identified by sha as path→blob content.
func (store *memoryObjectStore) flatten(sha string) map[string]string {
	flattened := map[string]string{}
	var walk func(prefix string, treeSHA string)
	walk = func(prefix string, treeSHA string) {
		for _, entry := range store.trees[treeSHA] {
			entryPath := joinPath(prefix, entry.Path)
			if entry.Kind == gitdata.EntryKindTree {
				walk(entryPath, entry.SHA)
				continue
			}
			flattened[entryPath] = string(store.blobs[entry.SHA])
		}
	}
	walk("", sha)
	return flattened
}

func (store *memoryObjectStore) treeEntryNames(sha string) []string {
	names := make([]string, 0)
	for _, entry := range store.trees[sha] {
		names = append(names, fmt.Sprintf("%s:%s", entry.Path, entry.Kind))
	}
	sort.Strings(names)
	return names
}

func (store *memoryObjectStore) childSHA(treeSHA string, name string) string {
	for _, entry := range store.trees[treeSHA] {
		if entry.Path == name {
			return entry.SHA
		}
	}
	return ""
}

func joinPath(prefix string, name string) string {
	if len(prefix) == 0 {
		return name
	}
	return prefix + "/" + name
}

func hashObject(kind string, content []byte) string {
	digest := sha1.Sum(append([]byte(kind+"\x00"), content...))
	return hex.EncodeToString(digest[:])
}
