// Package codec converts chat messages to and from the JSON text stored as one
// list element per message.
//
// The canonical record written by Encode is
//
//	{"messageType":"ASSISTANT","content":"hello","metadata":{...}}
//
// Decode also accepts the legacy shapes found in older stores: a bare JSON
// string (a user message), "type" or "role" instead of "messageType", "text"
// instead of "content", and arbitrary JSON whose own text becomes the content.
// Unknown roles never fail a read; they fall back to a user message.
package codec

import (
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/go-go-golems/chatmemory/pkg/chatmemory"
)

// Field names, in lookup priority order. When a record repeats a key, the
// first occurrence is used.
var (
	discriminatorFields = []string{"messageType", "type", "role"}
	contentFields       = []string{"content", "text"}
)

const (
	fieldMessageType = "messageType"
	fieldContent     = "content"
	fieldMetadata    = "metadata"
	fieldRole        = "role"
)

// Fallback reasons reported to the fallback observer.
const (
	FallbackMissingType = "missing_type"
	FallbackUnknownType = "unknown_type"
)

type Codec struct {
	roles      RoleTable
	logger     zerolog.Logger
	onFallback func(reason string)
}

type Option func(*Codec)

// WithRoles replaces the default role table. The table is copied.
func WithRoles(t RoleTable) Option {
	return func(c *Codec) {
		c.roles = t.clone()
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Codec) {
		c.logger = l
	}
}

// WithFallbackObserver registers a callback invoked every time Decode falls
// back to a user message because the discriminator was missing or unknown.
func WithFallbackObserver(f func(reason string)) Option {
	return func(c *Codec) {
		c.onFallback = f
	}
}

func New(opts ...Option) *Codec {
	c := &Codec{
		roles:  DefaultRoles(),
		logger: log.Logger.With().Str("component", "chat_memory_codec").Logger(),
	}
	for _, o := range opts {
		o(c)
	}
	if _, ok := c.roles[string(chatmemory.RoleUser)]; !ok {
		c.roles = c.roles.With(string(chatmemory.RoleUser), chatmemory.NewUserMessage)
	}
	return c
}

// Encode renders m in the canonical record shape.
func (c *Codec) Encode(m chatmemory.Message) (string, error) {
	if !m.Role.Valid() {
		return "", chatmemory.WithKind(chatmemory.ErrEncode, errors.Errorf("codec: unsupported role %q", m.Role))
	}
	out := []byte(`{}`)
	var err error
	if out, err = sjson.SetBytes(out, fieldMessageType, string(m.Role)); err != nil {
		return "", chatmemory.WithKind(chatmemory.ErrEncode, errors.Wrap(err, "codec: set messageType"))
	}
	if out, err = sjson.SetBytes(out, fieldContent, m.Text); err != nil {
		return "", chatmemory.WithKind(chatmemory.ErrEncode, errors.Wrap(err, "codec: set content"))
	}
	if len(m.Metadata) > 0 {
		if out, err = sjson.SetBytes(out, fieldMetadata, m.Metadata); err != nil {
			return "", chatmemory.WithKind(chatmemory.ErrEncode, errors.Wrap(err, "codec: set metadata"))
		}
	}
	return string(out), nil
}

// Decode recovers a message from any stored record. It only fails when raw is
// not JSON at all; unexpected shapes and roles are resolved to a user message.
func (c *Codec) Decode(raw string) (chatmemory.Message, error) {
	if !utf8.ValidString(raw) {
		return chatmemory.Message{}, chatmemory.WithKind(chatmemory.ErrDecode, errors.New("codec: record is not valid UTF-8"))
	}
	if !gjson.Valid(raw) {
		return chatmemory.Message{}, chatmemory.WithKind(chatmemory.ErrDecode, errors.Errorf("codec: record is not valid JSON: %.64q", raw))
	}

	node := gjson.Parse(raw)
	if node.Type == gjson.String {
		return c.construct(string(chatmemory.RoleUser), node.Str), nil
	}

	discriminator, found := c.extractType(node)
	content := extractContent(node, raw)

	ctor, ok := c.roles.lookup(discriminator)
	if !found || !ok {
		if !found {
			c.logger.Warn().Msg("message type not found, defaulting to USER")
			c.fallback(FallbackMissingType)
		} else {
			c.logger.Warn().Str("type", discriminator).Msg("unknown message type, defaulting to USER")
			c.fallback(FallbackUnknownType)
		}
		ctor = c.roles[string(chatmemory.RoleUser)]
	}

	msg := normalize(ctor(content))
	if md := node.Get(fieldMetadata); md.IsObject() {
		if m, ok := md.Value().(map[string]any); ok && len(m) > 0 {
			msg.Metadata = m
		}
	}
	return msg, nil
}

func (c *Codec) construct(name, text string) chatmemory.Message {
	return normalize(c.roles[name](text))
}

func (c *Codec) fallback(reason string) {
	if c.onFallback != nil {
		c.onFallback(reason)
	}
}

// extractType returns the first present discriminator field. A present field
// ends the search even when its value is null.
func (c *Codec) extractType(node gjson.Result) (string, bool) {
	for _, name := range discriminatorFields {
		v := node.Get(name)
		if !v.Exists() {
			continue
		}
		s := scalarText(v)
		if name == fieldRole {
			s = strings.ToUpper(s)
		}
		return s, true
	}
	return "", false
}

func extractContent(node gjson.Result, raw string) string {
	for _, name := range contentFields {
		if v := node.Get(name); v.Exists() {
			return scalarText(v)
		}
	}
	return compact(raw)
}

func scalarText(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Null:
		return ""
	case gjson.JSON:
		return compact(v.Raw)
	default:
		return v.Raw
	}
}

func compact(raw string) string {
	return strings.TrimSpace(string(pretty.Ugly([]byte(raw))))
}

// normalize keeps custom constructors inside the closed role set.
func normalize(m chatmemory.Message) chatmemory.Message {
	if !m.Role.Valid() {
		m.Role = chatmemory.RoleUser
	}
	return m
}
