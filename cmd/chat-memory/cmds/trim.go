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

type TrimCommand struct {
	*cmds.CommandDescription
}

type TrimSettings struct {
	ConversationIDs []string `glazed:"conversation-ids"`
	All             bool     `glazed:"all"`
	MaxLimit        int      `glazed:"max-limit"`
	DeleteCount     int      `glazed:"delete-count"`
}

func NewTrimCommand() (*TrimCommand, error) {
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
		"trim",
		cmds.WithShort("Drop the oldest messages of conversations that reached a size limit"),
		cmds.WithLong("When a conversation holds max-limit messages or more, drop its delete-count oldest messages."),
		cmds.WithFlags(
			fields.New(
				"all",
				fields.TypeBool,
				fields.WithDefault(false),
				fields.WithHelp("Trim every stored conversation"),
			),
			fields.New(
				"max-limit",
				fields.TypeInteger,
				fields.WithDefault(100),
				fields.WithHelp("Trim once a conversation holds this many messages"),
			),
			fields.New(
				"delete-count",
				fields.TypeInteger,
				fields.WithDefault(20),
				fields.WithHelp("Number of oldest messages to drop"),
			),
		),
		cmds.WithArguments(
			fields.New(
				"conversation-ids",
				fields.TypeStringList,
				fields.WithHelp("Conversation ids (ignored with --all)"),
			),
		),
		cmds.WithSections(sections...),
	)
	return &TrimCommand{CommandDescription: desc}, nil
}

func (c *TrimCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *values.Values,
	gp middlewares.Processor,
) error {
	s := &TrimSettings{}
	if err := parsedLayers.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	repo, closeStore, err := openRepository(ctx, parsedLayers, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	ids := s.ConversationIDs
	if s.All {
		ids, err = repo.FindConversationIDs(ctx)
		if err != nil {
			return err
		}
	}

	trimmer := repo.Trimmer()
	for _, id := range ids {
		res, err := trimmer.EnforceLimit(ctx, id, s.MaxLimit, s.DeleteCount)
		if err != nil {
			return err
		}
		row := types.NewRow(
			types.MRP("conversation_id", id),
			types.MRP("before", res.Before),
			types.MRP("after", res.After),
			types.MRP("removed", res.Removed),
			types.MRP("trimmed", res.Trimmed),
		)
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

var _ cmds.GlazeCommand = &TrimCommand{}
