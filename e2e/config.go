package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DispatchShards    int           `envconfig:"E2E_DISPATCH_SHARDS" default:"2"`
	OutboundQueueSize int           `envconfig:"E2E_OUTBOUND_QUEUE_SIZE" default:"32"`
	PollInterval      time.Duration `envconfig:"E2E_POLL_INTERVAL" default:"20ms"`
	DeliveryTimeout   time.Duration `envconfig:"E2E_DELIVERY_TIMEOUT" default:"5s"`
	// E2E_DEBUG_EVENTS dumps every pushed event for log readability
	DebugEvents bool `envconfig:"E2E_DEBUG_EVENTS" default:"false"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
