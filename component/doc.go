// Package component defines the lifecycle contract shared by long-lived
// resources: database engines, HTTP servers and connection pools.
//
// A Registry starts components in registration order and stops them in
// reverse. If a start fails, the components already started are stopped
// before the error is returned, so a half-started process never leaks an
// engine or a listener.
package component
