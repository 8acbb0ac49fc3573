package cmds

import (
	"context"
	"fmt"
	"io"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
)

type DeleteCommand struct {
	*cmds.CommandDescription
}

type DeleteSettings struct {
	ConversationIDs []string `glazed:"conversation-ids"`
}

func NewDeleteCommand() (*DeleteCommand, error) {
	sections, err := storeSections()
	if err != nil {
		return nil, err
	}
	desc := cmds.NewCommandDescription(
		"delete",
		cmds.WithShort("Delete conversations"),
		cmds.WithLong("Delete the stored history of each given conversation. Missing conversations are ignored."),
		cmds.WithArguments(
			fields.New(
				"conversation-ids",
				fields.TypeStringList,
				fields.WithHelp("Conversation ids"),
				fields.WithRequired(true),
			),
		),
		cmds.WithSections(sections...),
	)
	return &DeleteCommand{CommandDescription: desc}, nil
}

func (c *DeleteCommand) RunIntoWriter(ctx context.Context, parsedLayers *values.Values, w io.Writer) error {
	s := &DeleteSettings{}
	if err := parsedLayers.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	repo, closeStore, err := openRepository(ctx, parsedLayers, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	for _, id := range s.ConversationIDs {
		if err := repo.DeleteByConversationID(ctx, id); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "deleted %s\n", id); err != nil {
			return err
		}
	}
	return nil
}

var _ cmds.WriterCommand = &DeleteCommand{}
