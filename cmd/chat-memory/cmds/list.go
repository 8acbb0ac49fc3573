package cmds

import (
	"context"
	"sort"
	"strings"

	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
)

type ListCommand struct {
	*cmds.CommandDescription
}

type ListSettings struct {
	Filter     string `glazed:"filter"`
	WithLength bool   `glazed:"with-length"`
	Limit      int    `glazed:"limit"`
}

func NewListCommand() (*ListCommand, error) {
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
		"list",
		cmds.WithShort("List stored conversations"),
		cmds.WithLong("List the ids of all conversations found under the key prefix."),
		cmds.WithFlags(
			fields.New(
				"filter",
				fields.TypeString,
				fields.WithDefault(""),
				fields.WithHelp("Only show conversation ids starting with this string"),
			),
			fields.New(
				"with-length",
				fields.TypeBool,
				fields.WithDefault(false),
				fields.WithHelp("Load every conversation and report its message count"),
			),
			fields.New(
				"limit",
				fields.TypeInteger,
				fields.WithDefault(0),
				fields.WithHelp("Limit number of conversations (0 = no limit)"),
			),
		),
		cmds.WithSections(sections...),
	)

	return &ListCommand{CommandDescription: desc}, nil
}

func (c *ListCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *values.Values,
	gp middlewares.Processor,
) error {
	s := &ListSettings{}
	if err := parsedLayers.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	repo, closeStore, err := openRepository(ctx, parsedLayers, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	ids, err := repo.FindConversationIDs(ctx)
	if err != nil {
		return err
	}
	sort.Strings(ids)

	n := 0
	for _, id := range ids {
		if s.Filter != "" && !strings.HasPrefix(id, s.Filter) {
			continue
		}
		if s.Limit > 0 && n >= s.Limit {
			break
		}
		n++

		row := types.NewRow(types.MRP("conversation_id", id))
		if s.WithLength {
			msgs, err := repo.FindByConversationID(ctx, id)
			if err != nil {
				return err
			}
			row.Set("messages", len(msgs))
		}
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

var _ cmds.GlazeCommand = &ListCommand{}
