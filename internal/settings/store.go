package settings

import "context"

// UpdateFunc transforms the raw stored document during a read-modify-write
// cycle. raw is nil when the key is absent. The returned value replaces the
// stored document; returning an error aborts the write and surfaces the
// error to the caller unchanged.
type UpdateFunc func(raw []byte) (any, error)

// Store is project-scoped key-value persistence for structured documents.
// Update is the only safe way to perform read-modify-write: implementations
// must serialise concurrent cycles on the same key within the process and
// detect conflicting writes from other processes.
type Store interface {
	Get(ctx context.Context, project, key string, dest any) error
	Set(ctx context.Context, project, key string, value any) error
	Update(ctx context.Context, project, key string, fn UpdateFunc) error
}
