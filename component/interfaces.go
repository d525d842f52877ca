package component

import "context"

// HealthStatus is a component's reported state.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// Health is one component's status report.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Overall folds component reports into one status: any unhealthy report
// wins, then any degraded one. No reports means healthy.
func Overall(reports []Health) HealthStatus {
	status := StatusHealthy
	for _, h := range reports {
		switch h.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// Component is a resource with a start/stop lifecycle: the test engine
// controller, a database pool, an HTTP server.
type Component interface {
	// Name identifies the component in the registry and in health reports.
	Name() string
	// Start brings the component up. It is called once per registry start.
	Start(ctx context.Context) error
	// Stop releases everything Start acquired.
	Stop(ctx context.Context) error
	Health(ctx context.Context) Health
}
