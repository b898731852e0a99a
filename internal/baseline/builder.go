package baseline

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/prbaseline/internal/gitdata"
)

const (
	createBlobOperationNameConstant  = "create blob"
	createTreeOperationNameConstant  = "create tree"
	blobTreeCollisionMessageConstant = "a file and a directory share this path"
	rootTreeLabelConstant            = "/"
	blobUploadedMessageConstant      = "uploaded blob"
	treeCreatedMessageConstant       = "created tree"
	logFieldSizeConstant             = "size"
	logFieldSHAConstant              = "sha"
	logFieldEntryCountConstant       = "entry_count"
	defaultParallelUploadsConstant   = 1
)

// ObjectWriter creates blob and tree objects in the remote store.
type ObjectWriter interface {
	CreateBlob(executionContext context.Context, content []byte) (string, error)
	CreateTree(executionContext context.Context, entries []gitdata.TreeEntry) (string, error)
}

// TreeBuildResult identifies a materialized tree. Empty reports that every entry
// was removed and no tree was created.
type TreeBuildResult struct {
	SHA           string
	Empty         bool
	CreatedTrees  int
	UploadedBlobs int
	UploadedBytes int
}

// TreeBuilder rebuilds nested trees from flat entry sets, creating remote trees
// only for directories containing modified paths.
type TreeBuilder struct {
	writer             ObjectWriter
	maxParallelUploads int
	logger             *zap.Logger
}

type directoryNode struct {
	path        string
	original    *gitdata.TreeEntry
	files       map[string]EntryItem
	directories map[string]*directoryNode
	dirty       bool
}

type buildState struct {
	uploadedSHAs map[string]string
	createdTrees int
}

// NewTreeBuilder constructs a TreeBuilder. maxParallelUploads bounds concurrent blob uploads; values below one upload sequentially.
func NewTreeBuilder(writer ObjectWriter, maxParallelUploads int, logger *zap.Logger) *TreeBuilder {
	if maxParallelUploads < defaultParallelUploadsConstant {
		maxParallelUploads = defaultParallelUploadsConstant
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TreeBuilder{writer: writer, maxParallelUploads: maxParallelUploads, logger: logger}
}

// Build materializes the tree rooted at basePath from entries.
func (builder *TreeBuilder) Build(executionContext context.Context, entries EntrySet, basePath string) (TreeBuildResult, error) {
	scopedEntries := entries.Under(basePath)
	rootNode := arrangeDirectories(scopedEntries)

	uploadedSHAs, uploadedBytes, uploadError := builder.uploadPendingBlobs(executionContext, scopedEntries)
	if uploadError != nil {
		return TreeBuildResult{}, uploadError
	}

	state := &buildState{uploadedSHAs: uploadedSHAs}
	treeSHA, empty, materializeError := builder.materialize(executionContext, rootNode, state)
	if materializeError != nil {
		return TreeBuildResult{}, materializeError
	}

	return TreeBuildResult{
		SHA:           treeSHA,
		Empty:         empty,
		CreatedTrees:  state.createdTrees,
		UploadedBlobs: len(uploadedSHAs),
		UploadedBytes: uploadedBytes,
	}, nil
}

// arrangeDirectories groups a flat entry set into a directory arena and marks
// every ancestor of a modified path dirty.
func arrangeDirectories(entries EntrySet) *directoryNode {
	rootNode := newDirectoryNode("")
	for _, item := range entries.Items() {
		if item.Entry.IsTree() {
			treeEntry := item.Entry
			rootNode.ensure(treeEntry.Path).original = &treeEntry
			continue
		}
		parentNode := rootNode.ensure(parentDirectory(item.Entry.Path))
		parentNode.files[item.Entry.Name()] = item
	}
	for _, touchedPath := range entries.Touched() {
		rootNode.markDirty(parentDirectory(touchedPath))
	}
	return rootNode
}

func (builder *TreeBuilder) uploadPendingBlobs(executionContext context.Context, entries EntrySet) (map[string]string, int, error) {
	pendingItems := make([]EntryItem, 0)
	for _, item := range entries.Items() {
		if item.Pending {
			pendingItems = append(pendingItems, item)
		}
	}

	uploadedSHAs := make(map[string]string, len(pendingItems))
	uploadedBytes := 0
	var resultGuard sync.Mutex

	uploadGroup, groupContext := errgroup.WithContext(executionContext)
	uploadGroup.SetLimit(builder.maxParallelUploads)
	for _, pendingItem := range pendingItems {
		pendingItem := pendingItem
		uploadGroup.Go(func() error {
			blobSHA, createError := builder.writer.CreateBlob(groupContext, pendingItem.Content)
			if createError != nil {
				return RemoteAPIError{Operation: createBlobOperationNameConstant, Subject: pendingItem.Entry.Path, Cause: createError}
			}
			resultGuard.Lock()
			uploadedSHAs[pendingItem.Entry.Path] = blobSHA
			uploadedBytes += len(pendingItem.Content)
			resultGuard.Unlock()
			builder.logger.Debug(
				blobUploadedMessageConstant,
				zap.String(logFieldPathConstant, pendingItem.Entry.Path),
				zap.String(logFieldSHAConstant, blobSHA),
				zap.String(logFieldSizeConstant, humanize.Bytes(uint64(len(pendingItem.Content)))),
			)
			return nil
		})
	}
	if waitError := uploadGroup.Wait(); waitError != nil {
		return nil, 0, waitError
	}
	return uploadedSHAs, uploadedBytes, nil
}

func (builder *TreeBuilder) materialize(executionContext context.Context, node *directoryNode, state *buildState) (string, bool, error) {
	if !node.dirty && node.original != nil {
		return node.original.SHA, false, nil
	}
	if contextError := executionContext.Err(); contextError != nil {
		return "", false, contextError
	}

	levelEntries := make([]gitdata.TreeEntry, 0, len(node.files)+len(node.directories))
	for _, fileName := range sortedKeys(node.files) {
		if _, collides := node.directories[fileName]; collides {
			return "", false, ConflictError{Path: path.Join(node.path, fileName), Message: blobTreeCollisionMessageConstant}
		}
		item := node.files[fileName]
		levelEntry := item.Entry
		levelEntry.Path = fileName
		if item.Pending {
			levelEntry.SHA = state.uploadedSHAs[item.Entry.Path]
		}
		levelEntries = append(levelEntries, levelEntry)
	}

	for _, directoryName := range sortedKeys(node.directories) {
		childSHA, childEmpty, childError := builder.materialize(executionContext, node.directories[directoryName], state)
		if childError != nil {
			return "", false, childError
		}
		if childEmpty {
			continue
		}
		levelEntries = append(levelEntries, gitdata.TreeEntry{
			Path: directoryName,
			Kind: gitdata.EntryKindTree,
			Mode: gitdata.TreeModeConstant,
			SHA:  childSHA,
		})
	}

	if len(levelEntries) == 0 {
		return "", true, nil
	}

	sort.Slice(levelEntries, func(leftIndex int, rightIndex int) bool {
		return levelEntries[leftIndex].Path < levelEntries[rightIndex].Path
	})

	treeSHA, createError := builder.writer.CreateTree(executionContext, levelEntries)
	if createError != nil {
		return "", false, RemoteAPIError{Operation: createTreeOperationNameConstant, Subject: node.label(), Cause: createError}
	}
	state.createdTrees++
	builder.logger.Debug(
		treeCreatedMessageConstant,
		zap.String(logFieldPathConstant, node.label()),
		zap.String(logFieldSHAConstant, treeSHA),
		zap.Int(logFieldEntryCountConstant, len(levelEntries)),
	)
	return treeSHA, false, nil
}

func newDirectoryNode(directoryPath string) *directoryNode {
	return &directoryNode{
		path:        directoryPath,
		files:       map[string]EntryItem{},
		directories: map[string]*directoryNode{},
	}
}

// ensure returns the node for directoryPath, creating intermediate nodes.
func (node *directoryNode) ensure(directoryPath string) *directoryNode {
	if len(directoryPath) == 0 {
		return node
	}
	currentNode := node
	for _, segment := range splitPath(directoryPath) {
		childNode, exists := currentNode.directories[segment]
		if !exists {
			childNode = newDirectoryNode(path.Join(currentNode.path, segment))
			currentNode.directories[segment] = childNode
		}
		currentNode = childNode
	}
	return currentNode
}

// markDirty flags directoryPath and all of its ancestors.
func (node *directoryNode) markDirty(directoryPath string) {
	node.dirty = true
	currentNode := node
	for _, segment := range splitPath(directoryPath) {
		currentNode = currentNode.ensure(segment)
		currentNode.dirty = true
	}
}

func (node *directoryNode) label() string {
	if len(node.path) == 0 {
		return rootTreeLabelConstant
	}
	return node.path
}

func parentDirectory(entryPath string) string {
	directory := path.Dir(entryPath)
	if directory == "." {
		return ""
	}
	return directory
}

func splitPath(entryPath string) []string {
	segments := make([]string, 0)
	for _, segment := range strings.Split(entryPath, pathSeparatorConstant) {
		if len(segment) > 0 {
			segments = append(segments, segment)
		}
	}
	return segments
}

func sortedKeys[Value any](values map[string]Value) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
