// Package githubcli publishes baselines through the GitHub CLI.
//
// Client issues gh api calls against the git data endpoints (trees, blobs,
// commits, refs, compare) and the pulls endpoints, pages through open pull
// requests with gh api --paginate, and integrates with execshell so every
// interaction can be stubbed in tests. Client satisfies gitdata.Repository.
package githubcli
