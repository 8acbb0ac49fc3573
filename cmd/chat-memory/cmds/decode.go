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
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/go-go-golems/chatmemory/pkg/chatmemory/codec"
	cmsettings "github.com/go-go-golems/chatmemory/pkg/settings"
)

// DecodeCommand shows how stored records are interpreted, including the
// legacy shapes that fall back to a user message.
type DecodeCommand struct {
	*cmds.CommandDescription
}

type DecodeSettings struct {
	Records      []string `glazed:"records"`
	Conversation string   `glazed:"conversation"`
}

func NewDecodeCommand() (*DecodeCommand, error) {
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
		"decode",
		cmds.WithShort("Decode raw stored records"),
		cmds.WithLong(`Decode records given as arguments, or the raw records of a stored
conversation with --conversation, and report the resulting role and text and
whether a fallback to USER was applied. Records that fail to decode are
reported instead of aborting.`),
		cmds.WithFlags(
			fields.New(
				"conversation",
				fields.TypeString,
				fields.WithDefault(""),
				fields.WithHelp("Read the raw records of this conversation from the store"),
			),
		),
		cmds.WithArguments(
			fields.New(
				"records",
				fields.TypeStringList,
				fields.WithHelp("Raw JSON records"),
			),
		),
		cmds.WithSections(sections...),
	)
	return &DecodeCommand{CommandDescription: desc}, nil
}

func (c *DecodeCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *values.Values,
	gp middlewares.Processor,
) error {
	s := &DecodeSettings{}
	if err := parsedLayers.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}

	records := s.Records
	if s.Conversation != "" {
		storeSettings, err := decodeStoreSettings(parsedLayers)
		if err != nil {
			return err
		}
		adapter, err := cmsettings.OpenAdapter(ctx, storeSettings, nil)
		if err != nil {
			return err
		}
		defer func() { _ = adapter.Close() }()
		records, err = adapter.ListAll(ctx, s.Conversation)
		if err != nil {
			return err
		}
	}
	if len(records) == 0 {
		return errors.New("no records to decode (pass records as arguments or use --conversation)")
	}

	var fallback string
	c2 := codec.New(
		codec.WithLogger(zerolog.Nop()),
		codec.WithFallbackObserver(func(reason string) { fallback = reason }),
	)
	for i, raw := range records {
		fallback = ""
		row := types.NewRow(
			types.MRP("index", i),
			types.MRP("record", raw),
		)
		m, err := c2.Decode(raw)
		if err != nil {
			row.Set("error", err.Error())
		} else {
			row.Set("role", string(m.Role))
			row.Set("text", m.Text)
			row.Set("fallback", fallback)
			if len(m.Metadata) > 0 {
				row.Set("metadata", m.Metadata)
			}
		}
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

var _ cmds.GlazeCommand = &DecodeCommand{}
