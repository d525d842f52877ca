// Package version reports the build of a dbsnap binary. Values are set with
// -ldflags at build time and fall back to the module build info.
package version
