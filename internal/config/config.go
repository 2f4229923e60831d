package config

import (
	"fmt"
	"time"
)

// Config holds all backend configuration settings.
type Config struct {
	Environment string `envconfig:"ENV" default:"development"`

	HTTPPort        int           `envconfig:"HTTP_PORT" default:"5000"`
	HTTPTimeout     time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	CORSOrigins     []string      `envconfig:"CORS_ORIGINS" default:"*"`

	WorkDir   string `envconfig:"WORK_DIR" default:"./data"`
	StateFile string `envconfig:"STATE_FILE"`

	YtDlpPath        string        `envconfig:"YTDLP_PATH" default:"yt-dlp"`
	FormatSelector   string        `envconfig:"FORMAT"`
	ProbeConcurrency int           `envconfig:"PROBE_CONCURRENCY" default:"4"`
	ProbeTimeout     time.Duration `envconfig:"PROBE_TIMEOUT" default:"10s"`

	ProgressInterval time.Duration `envconfig:"PROGRESS_INTERVAL" default:"1s"`
	JobRetention     time.Duration `envconfig:"JOB_RETENTION" default:"1h"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

// Validate checks the configuration for invalid or missing values.
// Returns an error describing the first invalid setting found.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	if c.WorkDir == "" {
		return fmt.Errorf("work directory cannot be empty")
	}
	if c.YtDlpPath == "" {
		return fmt.Errorf("yt-dlp path cannot be empty")
	}

	if c.ProbeConcurrency <= 0 {
		return fmt.Errorf("probe concurrency must be positive: %d", c.ProbeConcurrency)
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe timeout must be positive: %s", c.ProbeTimeout)
	}
	// job creation replies only after probing
	if c.HTTPTimeout > 0 && c.ProbeTimeout >= c.HTTPTimeout {
		return fmt.Errorf("probe timeout %s must be shorter than HTTP timeout %s", c.ProbeTimeout, c.HTTPTimeout)
	}

	if c.ProgressInterval <= 0 {
		return fmt.Errorf("progress interval must be positive: %s", c.ProgressInterval)
	}
	if c.JobRetention <= 0 {
		return fmt.Errorf("job retention must be positive: %s", c.JobRetention)
	}

	return nil
}

// ClientConfig holds the settings of the command line client.
type ClientConfig struct {
	ServerURL      string        `envconfig:"SERVER_URL" default:"http://localhost:5000" validate:"required,url"`
	OutputDir      string        `envconfig:"OUTPUT_DIR" default:"." validate:"required"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s" validate:"gt=0"`
	IdleTimeout    time.Duration `envconfig:"IDLE_TIMEOUT" default:"2m" validate:"gte=0"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"warn" validate:"oneof=debug info warn error"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=json text"`
}
