package workload

import "fmt"

// DefaultProvider is used when Config.Provider is empty.
const DefaultProvider = ProviderDocker

// Config selects the runtime and the labels stamped on every workload.
type Config struct {
	Provider      string            `mapstructure:"provider" json:"provider"`
	DefaultLabels map[string]string `mapstructure:"default_labels" json:"default_labels"`
}

func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
}

func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("workload: provider is required")
	}
	return nil
}

// Labels merges DefaultLabels with request labels. Request labels win, except
// LabelManagedBy which always marks the workload as ours so List and cleanup
// can find it.
func (c Config) Labels(request map[string]string) map[string]string {
	labels := make(map[string]string, len(c.DefaultLabels)+len(request)+1)
	for k, v := range c.DefaultLabels {
		labels[k] = v
	}
	for k, v := range request {
		labels[k] = v
	}
	labels[LabelManagedBy] = ManagedByValue
	return labels
}
