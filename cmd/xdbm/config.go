package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oba-ldap/xdbm/internal/config"
)

var configFile string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate, validate and show configuration files",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Print the default configuration",
	Long:  "Outputs the default configuration to stdout in YAML format.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printConfig(config.DefaultConfig())
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigValidate()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Shows the configuration after environment variable substitution and
defaults. Without --config the defaults are shown.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultConfig()
		if configFile != "" {
			var err error
			if cfg, err = config.LoadConfig(configFile); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
		}
		return printConfig(cfg)
	},
}

func init() {
	configValidateCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to configuration file (required)")
	_ = configValidateCmd.MarkFlagRequired("config")
	configShowCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to configuration file")

	configCmd.AddCommand(configInitCmd, configValidateCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigValidate() error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	errs := config.ValidateConfig(cfg)
	if jsonOut {
		messages := make([]string, 0, len(errs))
		for _, e := range errs {
			messages = append(messages, e.Error())
		}
		if err := printJSON(map[string]interface{}{"valid": len(errs) == 0, "errors": messages}); err != nil {
			return err
		}
	} else if len(errs) > 0 {
		fmt.Fprintln(os.Stderr, "Configuration errors:")
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "  - %s\n", e)
		}
	} else {
		printInfo("Configuration is valid\n")
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func printConfig(cfg *config.Config) error {
	if jsonOut {
		return printJSON(cfg)
	}
	data, err := config.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}
