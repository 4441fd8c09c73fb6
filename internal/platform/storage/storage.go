package storage

import "context"

// DeleteOptions distinguishes a compensating rollback delete from a normal
// user-initiated delete. Rollback failures are logged by the caller, never
// propagated.
type DeleteOptions struct {
	Rollback bool
}

// AttachmentStore is the external file storage boundary. Mutations that
// reference a freshly uploaded object call Delete with Rollback set when the
// surrounding database transaction fails.
type AttachmentStore interface {
	Upload(ctx context.Context, folder string, name string, data []byte) (string, error)
	Delete(ctx context.Context, path string, opts DeleteOptions) error
}
