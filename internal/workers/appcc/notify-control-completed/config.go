// internal/workers/appcc/notify-control-completed/config.go
package notifycontrolcompleted

import "time"

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
	FromEmail    string
	Location     *time.Location
	Timeout      time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Location: time.Local,
		Timeout:  30 * time.Second,
	}
}
