package command

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/directory"
)

// NewConversationsCmd creates the conversations command.
func NewConversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "List conversations from the directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			client := directory.NewClient(cfg.DirectoryURL, logger.Named("directory"))
			convs, err := client.Conversations(cmd.Context())
			if err != nil {
				return err
			}

			if jsonMode, _ := cmd.Flags().GetBool("json"); jsonMode {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(convs)
			}

			out := cmd.OutOrStdout()
			for _, c := range convs {
				name := c.Name
				if name == "" {
					name = c.ID
				}
				marker := ""
				if c.UnreadCount > 0 {
					marker = fmt.Sprintf(" (%d unread)", c.UnreadCount)
				}
				fmt.Fprintf(out, "%s\t%s%s\n", c.ID, name, marker)
			}
			return nil
		},
	}

	cmd.Flags().Bool("json", false, "output in JSON format")

	return cmd
}
