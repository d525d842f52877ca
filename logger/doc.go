// Package logger provides structured logging backed by zerolog.
//
// Loggers are plain values passed to the components that use them. Each
// component derives its own tagged logger with WithComponent, so lifecycle
// events from the engine, the session manager and the HTTP layer can be told
// apart in a single test run's output.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.NewDefault("dbsnap").WithComponent("engine.sqlite")
//	log.Info("instance started", logger.Fields("instance_id", id))
package logger
