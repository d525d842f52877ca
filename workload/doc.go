// Package workload abstracts the container runtime used to host disposable
// database engines.
//
// A Manager deploys a container, reports its status and logs, and removes it.
// Runtimes may additionally implement ExecProvider, to run probes inside a
// container, and PortResolver, to discover the host endpoint of a published
// port that was assigned ephemerally.
//
// # Backends
//
//   - workload/docker: Docker Engine API
//   - workload/testutil: in-memory manager for unit tests
package workload
