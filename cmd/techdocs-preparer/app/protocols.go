package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/techdocs-preparer/internal/preparers"
)

func newProtocolsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "protocols",
		Short: "List the protocols served by the default preparers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cmd.Flags().GetString(flagFormat)
			if err != nil {
				return err
			}
			return runProtocols(cmd.Context(), v.GetString(flagConfig), format, cmd.OutOrStdout())
		},
	}
	cmd.Flags().String(flagFormat, "", "Output format (json)")
	return cmd
}

// runProtocols writes the protocols of the default registry to out
func runProtocols(ctx context.Context, configPath string, format string, out io.Writer) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	registry, err := preparers.FromConfig(ctx, cfg, preparers.Dependencies{
		Reader: newReader(cfg),
	})
	if err != nil {
		return fmt.Errorf("failed to create preparers: %w", err)
	}

	protocols := registry.Protocols()
	if format == formatJSON {
		return json.NewEncoder(out).Encode(protocols)
	}

	for _, protocol := range protocols {
		if _, err := fmt.Fprintln(out, protocol); err != nil {
			return err
		}
	}
	return nil
}
