// Package cmd provides the command-line interface for sitekit.
//
// # Available Commands
//
//   - build: resolve includes, run the bundle-close stages and write dist/
//   - watch: build, then rebuild whenever a source file changes
//   - serve: build, watch and serve dist/ with live reload
//   - config: show, initialize or validate the configuration
//   - version: print build information
//
// # Configuration
//
// Settings are read, lowest priority first, from built-in defaults,
// .sitekit.yml in the working directory (or the file named by --config or
// SITEKIT_CONFIG_FILE), SITEKIT_<SECTION>_<KEY> environment variables and
// command-line flags.
//
//	sitekit build --mode production-min
//	SITEKIT_OPTIMIZE=true sitekit build
//	sitekit serve --port 8080 --open
package cmd
