package cmds

import (
	"context"

	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
)

type ShowCommand struct {
	*cmds.CommandDescription
}

type ShowSettings struct {
	ConversationID string `glazed:"conversation-id"`
	WithMetadata   bool   `glazed:"with-metadata"`
}

func NewShowCommand() (*ShowCommand, error) {
	glazedSection, err := settings.NewGlazedSection()
	if err != nil {
		return nil, err
	}
	commandSettingsSection, err := cli.NewCommandSettingsSection()
	if err != nil {
		return nil, err
	}
	sections, err := storeSections(glazedSection, commandSettingsSection)
	if err != nil {
		return nil, err
	}

	desc := cmds.NewCommandDescription(
		"show",
		cmds.WithShort("Show the messages of a conversation"),
		cmds.WithLong("Decode every stored record of a conversation, oldest first."),
		cmds.WithFlags(
			fields.New(
				"with-metadata",
				fields.TypeBool,
				fields.WithDefault(false),
				fields.WithHelp("Include message metadata"),
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

	return &ShowCommand{CommandDescription: desc}, nil
}

func (c *ShowCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *values.Values,
	gp middlewares.Processor,
) error {
	s := &ShowSettings{}
	if err := parsedLayers.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	repo, closeStore, err := openRepository(ctx, parsedLayers, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	msgs, err := repo.FindByConversationID(ctx, s.ConversationID)
	if err != nil {
		return err
	}
	for i, m := range msgs {
		row := types.NewRow(
			types.MRP("index", i),
			types.MRP("role", string(m.Role)),
			types.MRP("text", m.Text),
		)
		if s.WithMetadata {
			row.Set("metadata", m.Metadata)
		}
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

var _ cmds.GlazeCommand = &ShowCommand{}
