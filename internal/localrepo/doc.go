// Package localrepo implements gitdata.Repository on a go-git object store.
//
// Objects and branches live in an on-disk repository opened with go-git or in
// memory. Pull requests are recorded in a YAML ledger so a publication can be
// rehearsed offline and repeated against the same store.
package localrepo
