package command

import (
	"os"

	"github.com/spf13/cobra"
)

const AppName = "weft"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Weft - real-time chat reconciliation client",
		Long:          "Weft keeps a local chat view consistent against an out-of-order event stream: delivery ticks, unread badges, and typing indicators.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("config", "", "path to config file")
	cmd.PersistentFlags().String("user", "", "user id (overrides config)")

	cmd.AddCommand(
		NewRunCmd(),
		NewUnreadCmd(),
		NewConversationsCmd(),
	)

	return cmd
}

func Execute() error {
	return NewRootCmd(Version).Execute()
}
