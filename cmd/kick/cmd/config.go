package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/kick"
)

// NewConfigCommand groups the configuration subcommands
func NewConfigCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and generate configuration",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}
	cmd.AddCommand(newConfigSampleCommand())
	cmd.AddCommand(newConfigShowCommand(root))
	cmd.AddCommand(newConfigDescribeCommand())
	return cmd
}

func newConfigSampleCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print a configuration file holding every default",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := kick.GenerateSampleConfig(&kick.AppConfig{}, format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format: yaml, json or toml")
	return cmd
}

func newConfigShowCommand(root *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Long:  "Print the configuration after the config file, environment overrides and defaults are applied.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			data, err := kick.EncodeConfig(cfg, format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format: yaml, json or toml")
	return cmd
}

func newConfigDescribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Explain each documented configuration field",
		Run: func(cmd *cobra.Command, args []string) {
			for _, line := range kick.DescribeConfig(kick.AppConfig{}) {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
		},
	}
}
