package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/a11ykraft/a11ykraft/internal/domain"
)

const configFileName = ".a11ykraft.yaml"

func newInitCmd() *cobra.Command {
	var (
		siteURL string
		level   string
		engines []string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Generate a .a11ykraft.yaml configuration file",
		Long:  "Create a .a11ykraft.yaml with the default analysis settings.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			absPath, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			dest := filepath.Join(absPath, configFileName)

			if !force {
				if _, err := os.Stat(dest); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", configFileName)
				}
			}

			cfg := domain.DefaultScanConfig()
			cfg.SiteURL = siteURL
			cfg.WCAGLevel = level
			if len(engines) > 0 {
				cfg.Engines = engines
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			content, err := generateConfig(cfg)
			if err != nil {
				return err
			}

			if err := os.WriteFile(dest, content, 0644); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", configFileName)
			return nil
		},
	}

	cmd.Flags().StringVar(&siteURL, "site", "", "Site to scan")
	cmd.Flags().StringVar(&level, "level", string(domain.LevelAA), "WCAG level (A, AA, AAA)")
	cmd.Flags().StringSliceVar(&engines, "engines", nil, "Rule engines (htmlcheck, axe, pa11y)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing .a11ykraft.yaml")

	return cmd
}

func generateConfig(cfg domain.ScanConfig) ([]byte, error) {
	body, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	header := "# a11ykraft configuration\n" +
		"# Durations are in milliseconds. A11YKRAFT_* environment variables override these values.\n\n"
	return append([]byte(header), body...), nil
}
