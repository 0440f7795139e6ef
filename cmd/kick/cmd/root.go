package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/kick"
	"github.com/GoCodeAlone/kick/feeders"
)

// Version information
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

type rootOptions struct {
	configPath string
	envPrefix  string
}

// NewRootCommand creates the root command for the kick CLI
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "kick",
		Short: "Kick CLI - inspect routes and configuration of a kick application",
		Long: `Kick CLI inspects the controller files a kick application would discover
and prints, explains or generates its configuration.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (yaml, toml or json)")
	cmd.PersistentFlags().StringVar(&opts.envPrefix, "env-prefix", feeders.DefaultEnvPrefix, "Prefix of environment overrides; empty disables them")

	cmd.AddCommand(NewRoutesCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// NewVersionCommand prints build information
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), PrintVersion())
		},
	}
}

// PrintVersion prints version information
func PrintVersion() string {
	return fmt.Sprintf("Kick CLI v%s (commit: %s, built on: %s)", Version, Commit, Date)
}

// loadConfig feeds the config file, then environment overrides.
func (o *rootOptions) loadConfig() (kick.AppConfig, error) {
	var sources []feeders.Feeder
	if o.configPath != "" {
		f, err := feeders.ForFile(o.configPath)
		if err != nil {
			return kick.AppConfig{}, err
		}
		sources = append(sources, f)
	}
	if o.envPrefix != "" {
		sources = append(sources, feeders.NewEnvFeeder(o.envPrefix))
	}
	return kick.LoadConfig(sources...)
}
