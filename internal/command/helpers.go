package command

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/config"
	"github.com/weftlabs/weft/internal/logging"
)

// loadConfig resolves configuration for a command invocation: flags win
// over environment, environment over file, file over defaults.
func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	if user, _ := cmd.Flags().GetString("user"); user != "" {
		cfg.UserID = user
	}
	if cfg.UserID == "" {
		return config.Config{}, nil, fmt.Errorf("user id is required (set --user or WEFT_USER_ID)")
	}
	return cfg, logging.New(cfg.LogLevel), nil
}
