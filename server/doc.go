// Package server provides the HTTP server used by dbsnap services: Gin
// behind an h2c handler, with lifecycle management and a health endpoint.
//
// Middleware (server/middleware): panic recovery, request IDs, request
// logging and request body limits.
package server
