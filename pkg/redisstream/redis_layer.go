package redisstream

import (
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/schema"
)

const SectionSlug = "events"

// Settings holds the change-event transport configuration. When Enabled is
// false events travel over an in-process channel.
type Settings struct {
	Enabled  bool   `glazed:"events-redis-enabled"`
	Addr     string `glazed:"events-redis-addr"`
	Topic    string `glazed:"events-topic"`
	Group    string `glazed:"events-group"`
	Consumer string `glazed:"events-consumer"`
}

// NewParameterLayer returns the section definition for Settings.
func NewParameterLayer() (schema.Section, error) {
	return schema.NewSection(
		SectionSlug,
		"Change events transport (Redis Streams via Watermill)",
		schema.WithFields(
			fields.New("events-redis-enabled", fields.TypeBool,
				fields.WithDefault(false),
				fields.WithHelp("Publish change events to Redis Streams instead of an in-process channel")),
			fields.New("events-redis-addr", fields.TypeString,
				fields.WithDefault("localhost:6379"),
				fields.WithHelp("Redis address host:port for change events")),
			fields.New("events-topic", fields.TypeString,
				fields.WithDefault(DefaultTopic),
				fields.WithHelp("Topic (stream name) carrying change events")),
			fields.New("events-group", fields.TypeString,
				fields.WithDefault("chat-memory-retention"),
				fields.WithHelp("Redis consumer group of the retention worker")),
			fields.New("events-consumer", fields.TypeString,
				fields.WithDefault("retention-1"),
				fields.WithHelp("Redis consumer name of the retention worker")),
		),
	)
}
