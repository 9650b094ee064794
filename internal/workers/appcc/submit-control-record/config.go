// internal/workers/appcc/submit-control-record/config.go
package submitcontrolrecord

import (
	"time"

	"appcc-workers/internal/forms"
)

type Config struct {
	Timeout         time.Duration
	DefaultUserName string
	Location        *time.Location
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         30 * time.Second,
		DefaultUserName: forms.DefaultUserName,
		Location:        time.Local,
	}
}
