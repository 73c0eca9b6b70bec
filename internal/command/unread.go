package command

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/directory"
)

// NewUnreadCmd creates the unread command: a one-shot dump of the
// authoritative unread counters.
func NewUnreadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unread",
		Short: "Show unread counts per conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			client := directory.NewClient(cfg.DirectoryURL, logger.Named("directory"))
			unread, err := client.UnreadCountsFetch(cmd.Context())
			if err != nil {
				return err
			}

			if jsonMode, _ := cmd.Flags().GetBool("json"); jsonMode {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(unread)
			}

			out := cmd.OutOrStdout()
			ids := make([]string, 0, len(unread.Conversations))
			for id := range unread.Conversations {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Fprintf(out, "%s\t%d\n", id, unread.Conversations[id])
			}
			fmt.Fprintf(out, "total\t%d\n", unread.Global)
			return nil
		},
	}

	cmd.Flags().Bool("json", false, "output in JSON format")

	return cmd
}
