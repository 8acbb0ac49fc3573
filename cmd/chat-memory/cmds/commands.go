package cmds

import (
	"github.com/go-go-golems/glazed/pkg/cli"
	glazed_cmds "github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/spf13/cobra"
)

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "Inspect and edit stored conversations",
	Long:  "Read, replace, delete and trim the message histories kept in the chat memory store.",
}

// AddToRootCommand registers the conversation commands under a
// "conversations" group and the serve command directly on root.
func AddToRootCommand(root *cobra.Command) {
	listCmd, err := NewListCommand()
	cobra.CheckErr(err)
	showCmd, err := NewShowCommand()
	cobra.CheckErr(err)
	importCmd, err := NewImportCommand()
	cobra.CheckErr(err)
	deleteCmd, err := NewDeleteCommand()
	cobra.CheckErr(err)
	trimCmd, err := NewTrimCommand()
	cobra.CheckErr(err)
	decodeCmd, err := NewDecodeCommand()
	cobra.CheckErr(err)
	serveCmd, err := NewServeCommand()
	cobra.CheckErr(err)

	for _, c := range []glazed_cmds.Command{listCmd, showCmd, importCmd, deleteCmd, trimCmd, decodeCmd} {
		cobraCmd, err := cli.BuildCobraCommand(c, cli.WithCobraMiddlewaresFunc(commandMiddlewares))
		cobra.CheckErr(err)
		conversationsCmd.AddCommand(cobraCmd)
	}
	root.AddCommand(conversationsCmd)

	cobraServeCmd, err := cli.BuildCobraCommand(serveCmd, cli.WithCobraMiddlewaresFunc(commandMiddlewares))
	cobra.CheckErr(err)
	root.AddCommand(cobraServeCmd)
}
