// internal/workers/appcc/index-control-record/config.go
package indexcontrolrecord

import "time"

type Config struct {
	Index   string
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Index:   "appcc-records",
		Timeout: 30 * time.Second,
	}
}
