// Package gitprovider defines the Git/VCS provider port (interface).
package gitprovider

import "context"

// Commit identifies the pushed result of a run.
type Commit struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Provider is the port interface for the git operations the pipeline
// binds to its stages. Each call may fail with a transport or conflict
// error; the runner surfaces that as a stage failure and never retries
// on its own.
type Provider interface {
	// Name returns the unique identifier for this provider (e.g. "cli").
	Name() string

	// CheckRemote verifies the upstream repository exists and is reachable.
	CheckRemote(ctx context.Context, fullName string) error

	// Fork ensures a fork of the upstream exists for the acting account
	// and returns the fork's clone URL.
	Fork(ctx context.Context, fullName string) (cloneURL string, err error)

	// CloneOrPull clones cloneURL into workTree, or pulls when workTree
	// already holds a clone.
	CloneOrPull(ctx context.Context, cloneURL, workTree string) error

	// Checkout switches workTree to branch, creating it if needed.
	Checkout(ctx context.Context, workTree, branch string) error

	// Add stages all working-tree changes.
	Add(ctx context.Context, workTree string) error

	// Commit records staged changes. A clean index is not an error.
	Commit(ctx context.Context, workTree, message string) error

	// Push publishes the current branch to the fork.
	Push(ctx context.Context, workTree, branch string) error

	// ResolveCommit returns the HEAD commit id and its browse URL.
	ResolveCommit(ctx context.Context, workTree string) (*Commit, error)
}
