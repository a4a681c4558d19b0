// Package preparers selects and runs the component that materializes the
// documentation source of a catalog entity.
//
// An entity points at its documentation with the backstage.io/techdocs-ref
// annotation, e.g. "dir:./docs" or "url:https://example.com/docs.tar.gz".
// The part before the first colon is the remote protocol. A Registry maps each
// protocol to exactly one Preparer; FromConfig builds the registry with the
// default preparers for dir, github, gitlab, azure/api and url.
//
//	registry, err := preparers.FromConfig(ctx, cfg, preparers.Dependencies{
//		Logger: logger,
//		Reader: reader.NewHTTPReader(),
//	})
//	...
//	preparer, err := registry.Get(entity)
//	if errors.Is(err, preparers.ErrNotRegistered) {
//		...
//	}
//	result, err := preparer.Prepare(ctx, entity, preparers.PrepareOptions{})
package preparers
