// internal/workers/appcc/validate-control-form/config.go
package validatecontrolform

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
