package backup

import "context"

// Service is the remote backup-management API. Implementations return
// *RemoteError for non-2xx responses and *TransportError when the request
// never got a response.
type Service interface {
	// Create asks the remote to start a backup named id. It returns once the
	// operation is accepted, not completed.
	Create(ctx context.Context, id string, req CreateRequest) (Operation, error)

	// List returns every backup in the configured location, in remote order.
	List(ctx context.Context) ([]Record, error)

	// Delete asks the remote to delete the backup with the given resource name.
	Delete(ctx context.Context, name string) (Operation, error)

	// Get returns one backup by resource name.
	Get(ctx context.Context, name string) (Record, error)

	// Name returns the provider identifier (e.g. "gcp", "azure").
	Name() string
}
