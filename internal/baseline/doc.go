// Package baseline turns locally produced "Updated" files into remote tree objects.
//
// Collector groups the files by change key, a ReconciliationPolicy decides the
// content published for every key, EntrySet applies the results immutably,
// TreeBuilder materializes only the directories that changed, and Graft splices
// the rebuilt subtree back into the repository root.
package baseline
