package cmds

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/chatmemory/pkg/chatmemory"
)

type ImportCommand struct {
	*cmds.CommandDescription
}

type ImportSettings struct {
	ConversationID string `glazed:"conversation-id"`
	File           string `glazed:"file"`
	Append         bool   `glazed:"append"`
}

func NewImportCommand() (*ImportCommand, error) {
	sections, err := storeSections()
	if err != nil {
		return nil, err
	}
	desc := cmds.NewCommandDescription(
		"import",
		cmds.WithShort("Replace a conversation with messages read from a file"),
		cmds.WithLong(`Read a YAML or JSON file holding a list of messages, either at the top level
or under a "messages" key, and save it as the conversation's history:

  - role: system
    text: You are terse.
  - role: user
    text: hi
    metadata:
      lang: en

Use "-" to read from stdin.`),
		cmds.WithFlags(
			fields.New(
				"file",
				fields.TypeString,
				fields.WithHelp("YAML/JSON file with the messages (- for stdin)"),
				fields.WithRequired(true),
			),
			fields.New(
				"append",
				fields.TypeBool,
				fields.WithDefault(false),
				fields.WithHelp("Keep the stored history and add the file's messages after it"),
			),
		),
		cmds.WithArguments(
			fields.New(
				"conversation-id",
				fields.TypeString,
				fields.WithHelp("Conversation id"),
				fields.WithRequired(true),
			),
		),
		cmds.WithSections(sections...),
	)
	return &ImportCommand{CommandDescription: desc}, nil
}

func (c *ImportCommand) RunIntoWriter(ctx context.Context, parsedLayers *values.Values, w io.Writer) error {
	s := &ImportSettings{}
	if err := parsedLayers.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}

	var raw []byte
	var err error
	if s.File == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(s.File)
	}
	if err != nil {
		return errors.Wrapf(err, "read %s", s.File)
	}
	msgs, err := ParseMessages(raw)
	if err != nil {
		return errors.Wrapf(err, "parse %s", s.File)
	}

	repo, closeStore, err := openRepository(ctx, parsedLayers, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	if s.Append {
		existing, err := repo.FindByConversationID(ctx, s.ConversationID)
		if err != nil {
			return err
		}
		prefix := make([]*chatmemory.Message, 0, len(existing)+len(msgs))
		for i := range existing {
			prefix = append(prefix, &existing[i])
		}
		msgs = append(prefix, msgs...)
	}

	if err := repo.SaveAll(ctx, s.ConversationID, msgs); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "saved %d messages to %s\n", len(msgs), s.ConversationID)
	return err
}

// ParseMessages reads a message list from YAML or JSON. Role names are
// matched case-insensitively; missing or unknown roles become USER.
func ParseMessages(raw []byte) ([]*chatmemory.Message, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	var msgs []*chatmemory.Message
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&msgs); err != nil {
			return nil, err
		}
	case yaml.MappingNode:
		var wrapped struct {
			Messages []*chatmemory.Message `yaml:"messages"`
		}
		if err := root.Decode(&wrapped); err != nil {
			return nil, err
		}
		msgs = wrapped.Messages
	case 0:
		// empty document
	default:
		return nil, errors.New("expected a list of messages or a mapping with a messages key")
	}

	if msgs == nil {
		msgs = []*chatmemory.Message{}
	}
	for i, m := range msgs {
		if m == nil {
			return nil, errors.Errorf("message %d is empty", i)
		}
		role, ok := chatmemory.ParseRole(string(m.Role))
		if !ok {
			log.Warn().Int("index", i).Str("role", string(m.Role)).Msg("unknown role, defaulting to USER")
		}
		m.Role = role
	}
	return msgs, nil
}

var _ cmds.WriterCommand = &ImportCommand{}
