// internal/workers/scoring/status-score/config.go
package statusscore

import (
	"time"

	"github.com/50mmer/statusai/internal/common/config"
)

type Config struct {
	Timeout             time.Duration
	RequireSubscription bool
}

func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Config{
		Timeout:             timeout,
		RequireSubscription: true,
	}
}
