package baseline

import (
	"context"
	"strings"

	"github.com/temirov/prbaseline/internal/gitdata"
)

const createEmptyTreeSubjectConstant = "empty root"

// Graft splices subtree into originalRoot at mountPath. Entries outside
// mountPath keep their identifiers; only the ancestors of mountPath are rebuilt.
// An empty subtree removes mountPath from the root.
func (builder *TreeBuilder) Graft(executionContext context.Context, originalRoot gitdata.TreeSnapshot, subtree TreeBuildResult, mountPath string) (TreeBuildResult, error) {
	normalizedMountPath := NormalizeTreePath(mountPath)
	if len(normalizedMountPath) == 0 {
		return builder.ensureTree(executionContext, subtree)
	}

	mountPrefix := normalizedMountPath + pathSeparatorConstant
	retainedEntries := make([]gitdata.TreeEntry, 0, len(originalRoot.Entries))
	for _, entry := range originalRoot.Entries {
		if entry.Path == normalizedMountPath || strings.HasPrefix(entry.Path, mountPrefix) {
			continue
		}
		retainedEntries = append(retainedEntries, entry)
	}

	graftedEntries := NewEntrySet(retainedEntries)
	if subtree.Empty {
		graftedEntries = graftedEntries.withTouched(normalizedMountPath)
	} else {
		graftedEntries = graftedEntries.WithEntry(gitdata.TreeEntry{
			Path: normalizedMountPath,
			Kind: gitdata.EntryKindTree,
			Mode: gitdata.TreeModeConstant,
			SHA:  subtree.SHA,
		})
	}

	graftedRoot, buildError := builder.Build(executionContext, graftedEntries, "")
	if buildError != nil {
		return TreeBuildResult{}, buildError
	}
	return builder.ensureTree(executionContext, graftedRoot)
}

// ensureTree creates an empty tree when result holds no entries, so a commit always has a tree to reference.
func (builder *TreeBuilder) ensureTree(executionContext context.Context, result TreeBuildResult) (TreeBuildResult, error) {
	if !result.Empty {
		return result, nil
	}
	treeSHA, createError := builder.writer.CreateTree(executionContext, nil)
	if createError != nil {
		return TreeBuildResult{}, RemoteAPIError{Operation: createTreeOperationNameConstant, Subject: createEmptyTreeSubjectConstant, Cause: createError}
	}
	result.SHA = treeSHA
	result.CreatedTrees++
	return result, nil
}
