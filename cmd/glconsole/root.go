package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-installer/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-installer/internal/infrastructure/logging"
)

// defaultConfigPath is used when neither --config nor GRAYLOGIC_CONFIG is set
// and the file exists.
const defaultConfigPath = "configs/glconsole.yaml"

// app carries state shared by every subcommand.
type app struct {
	configPath string
	out        io.Writer

	cfg *config.Config
	log *logging.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:   "glconsole",
		Short: "Gray Logic installer console",
		Long: `glconsole finds free ports and sequence slots on a central and locates
devices that are already placed.

Configuration is read from --config, then $GRAYLOGIC_CONFIG, then
configs/glconsole.yaml. GRAYLOGIC_* environment variables override the file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.load()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to the YAML config file")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		newServeCmd(a),
		newScanCmd(a),
		newLocateCmd(a),
		newImportCmd(a),
		newMigrateCmd(a),
		newTokenCmd(a),
		newVersionCmd(a),
	)
	return root
}

// load reads the configuration and builds the logger.
func (a *app) load() error {
	path := a.resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg
	a.log = logging.New(cfg.Logging, version)
	a.log.Debug("configuration loaded", "path", path)
	return nil
}

func (a *app) resolveConfigPath() string {
	if a.configPath != "" {
		return a.configPath
	}
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		// No config needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(*cobra.Command, []string) error {
			_, err := fmt.Fprintf(a.out, "glconsole %s (commit %s, built %s)\n", version, commit, date)
			return err
		},
	}
}
