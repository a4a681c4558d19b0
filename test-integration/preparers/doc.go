// Package integration provides end-to-end tests of the default preparer
// registry. The suites exercise real directories and HTTP servers serving
// documentation archives, without mocks.
package integration
