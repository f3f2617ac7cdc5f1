package conf

import (
	"github.com/DataDog/datadog-go/statsd"
)

// NewStatsd returns a no-op client unless an agent host is configured.
func NewStatsd(env *Env) (statsd.ClientInterface, error) {
	if env.StatsdAgentHost == "" {
		env.Logger.Debug("Statsd is not configured")
		return &statsd.NoOpClient{}, nil
	}
	client, err := statsd.New(env.StatsdAgentHost,
		statsd.WithNamespace("datasync."),
		statsd.WithTags([]string{"application:" + env.ServiceName}))
	if err != nil {
		return nil, err
	}
	env.Logger.Infof("Statsd is configured on: %s", env.StatsdAgentHost)
	return client, nil
}
