// Package app provides the commands of the techdocs preparer CLI.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/techdocs-preparer/internal/config"
	"github.com/stacklok/techdocs-preparer/internal/versions"
)

const (
	flagConfig = "config"
	flagFormat = "format"

	formatJSON = "json"
)

// NewRootCmd creates the root command. Flags may also be set through
// TECHDOCS_ prefixed environment variables, e.g. TECHDOCS_CONFIG.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:               "techdocs-preparer",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Prepare documentation sources of catalog entities",
		Long: `techdocs-preparer reads a catalog entity descriptor, selects the preparer
registered for the protocol of its backstage.io/techdocs-ref annotation and
materializes the documentation source into a local directory.`,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				slog.Error("Error displaying help", "error", err)
			}
		},
	}

	rootCmd.PersistentFlags().String(flagConfig, "", "Path to configuration file (YAML format)")
	bindFlag(v, flagConfig, rootCmd)

	rootCmd.AddCommand(newPrepareCmd(v))
	rootCmd.AddCommand(newProtocolsCmd(v))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// bindFlag binds the persistent or local flag name of cmd to v
func bindFlag(v *viper.Viper, name string, cmd *cobra.Command) {
	flag := cmd.Flags().Lookup(name)
	if flag == nil {
		flag = cmd.PersistentFlags().Lookup(name)
	}
	if err := v.BindPFlag(name, flag); err != nil {
		slog.Error("Error binding flag", "flag", name, "error", err)
	}
}

// loadConfig reads the configuration file at path, or returns the defaults
// when path is empty
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.NewDefaultConfig(), nil
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Debug("Loaded configuration", "path", path)
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			format, err := cmd.Flags().GetString(flagFormat)
			if err != nil {
				return err
			}

			if format == formatJSON {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to format version info as JSON: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return err
		},
	}
	cmd.Flags().String(flagFormat, "", "Output format (json)")
	return cmd
}
