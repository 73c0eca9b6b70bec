package command

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/cache"
	"github.com/weftlabs/weft/internal/directory"
	"github.com/weftlabs/weft/internal/engine"
	"github.com/weftlabs/weft/internal/sound"
	"github.com/weftlabs/weft/internal/transport"
	"github.com/weftlabs/weft/internal/ui"
)

// NewRunCmd creates the run command: the interactive dashboard wired to a
// live transport and directory.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the interactive chat dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			silent, _ := cmd.Flags().GetBool("silent")
			var sink sound.Sink = sound.NewBeeper(logger.Named("sound"))
			if silent {
				sink = sound.Silent{}
			}

			var snap *cache.Cache
			if cfg.CachePath != "" {
				snap, err = cache.Open(cfg.CachePath)
				if err != nil {
					logger.Warn("snapshot cache unavailable", zap.Error(err))
					snap = nil
				} else {
					defer snap.Close()
				}
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			ws := transport.DialWS(ctx, transport.WSConfig{URL: cfg.TransportURL}, logger.Named("transport"))
			eng := engine.New(engine.Options{
				Config:    cfg,
				Transport: ws,
				Directory: directory.NewClient(cfg.DirectoryURL, logger.Named("directory")),
				Cache:     snap,
				Sink:      sink,
				Logger:    logger.Named("engine"),
			})
			if err := eng.Start(ctx); err != nil {
				return err
			}
			defer eng.Stop()

			return ui.Run(eng)
		},
	}

	cmd.Flags().Bool("silent", false, "disable notification sounds and toasts")

	return cmd
}
