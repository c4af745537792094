// Package archive persists raw downloaded payloads so a pipeline run can be
// audited or replayed. Providers mirror the deployment targets: local disk,
// GCS, in-memory for tests, and a no-op default.
package archive

import "context"

// Provider is the common interface for the raw-download archive.
type Provider interface {
	// Put stores data under key and returns a URI for the stored object.
	Put(ctx context.Context, key string, data []byte) (string, error)

	// Close releases any underlying resources.
	Close() error
}

// NoOpProvider discards archived payloads.
type NoOpProvider struct{}

// Put discards the payload and returns a placeholder URI.
func (*NoOpProvider) Put(_ context.Context, key string, _ []byte) (string, error) {
	return "noop://" + key, nil
}

// Close does nothing.
func (*NoOpProvider) Close() error { return nil }
