// Package internal contains the implementation packages of sitekit.
//
// # Package Organization
//
//   - include: @@include resolution, parameters, slots and the code guard
//   - rewrite: alias, font path and HTML tag rewriting
//   - pipeline: chunked parallel execution with per-item results
//   - assets: resource collection, copying and image optimization
//   - site: the build orchestrator and its plugin hooks
//   - watcher: debounced file system monitoring
//   - server: static dev server with websocket live reload
//   - config, logging, errors, validation: the shared ambient layer
//
// # Data Flow
//
// The site Builder finds entry pages, runs the transform hooks on each page
// (include resolution, then alias rewriting) and writes the result to dist/.
// Outside development mode it then runs the close-bundle hooks in order,
// each of which fans its files out through pipeline.Run and records a
// Summary in the build Report. The watcher triggers rebuilds and the
// server tells connected browsers to reload afterwards.
package internal
