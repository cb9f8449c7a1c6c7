// Package archive defines the artifact manager port (interface).
package archive

import "context"

// Archiver packages a command's final working tree into a single
// compressed artifact addressed by command id.
type Archiver interface {
	// Archive produces the artifact for commandID from workTree. The
	// write is atomic with respect to readers: the previous artifact
	// stays retrievable until the new one is fully written.
	Archive(ctx context.Context, commandID, workTree string) (path string, err error)

	// Retrieve returns the current artifact path, or domain.ErrNotFound
	// if no successful run has produced one yet.
	Retrieve(ctx context.Context, commandID string) (path string, err error)

	// Discard removes the artifact, if any. Used by restart and remove.
	Discard(ctx context.Context, commandID string) error
}
