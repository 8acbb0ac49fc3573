package settings

import (
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/schema"
	"github.com/pkg/errors"
)

const (
	RetentionSlug = "retention"
	ServerSlug    = "server"
)

type RetentionSettings struct {
	Enabled     bool `glazed:"retention-enabled"`
	MaxLimit    int  `glazed:"max-limit"`
	DeleteCount int  `glazed:"delete-count"`
}

func (s RetentionSettings) Validate() error {
	if s.MaxLimit < 0 {
		return errors.Errorf("max-limit must be >= 0, got %d", s.MaxLimit)
	}
	return nil
}

func NewRetentionSection() (schema.Section, error) {
	return schema.NewSection(
		RetentionSlug,
		"Retention",
		schema.WithFields(
			fields.New("retention-enabled", fields.TypeBool,
				fields.WithDefault(false),
				fields.WithHelp("Trim conversations automatically after they are saved")),
			fields.New("max-limit", fields.TypeInteger,
				fields.WithDefault(100),
				fields.WithHelp("Trim once a conversation holds this many messages")),
			fields.New("delete-count", fields.TypeInteger,
				fields.WithDefault(20),
				fields.WithHelp("Number of oldest messages dropped by a trim")),
		),
	)
}

type ServerSettings struct {
	Addr            string `glazed:"addr"`
	MetricsEnabled  bool   `glazed:"metrics"`
	ShutdownTimeout int    `glazed:"shutdown-timeout"`
}

func NewServerSection() (schema.Section, error) {
	return schema.NewSection(
		ServerSlug,
		"HTTP server",
		schema.WithFields(
			fields.New("addr", fields.TypeString,
				fields.WithDefault(":8080"),
				fields.WithHelp("HTTP listen address")),
			fields.New("metrics", fields.TypeBool,
				fields.WithDefault(true),
				fields.WithHelp("Expose Prometheus metrics on /metrics")),
			fields.New("shutdown-timeout", fields.TypeInteger,
				fields.WithDefault(10),
				fields.WithHelp("Seconds to wait for in-flight requests on shutdown")),
		),
	)
}
