package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danmuck/geoctl/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write or validate config files",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init <engine|store> <path>",
		Short: "Write a config template",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteTemplate(args[1], args[0], force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s config template to %s\n", args[0], args[1])
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	checkCmd := &cobra.Command{
		Use:   "check <engine|store> <path>",
		Short: "Validate a config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, path := strings.ToLower(args[0]), args[1]
			var err error
			switch kind {
			case "engine", "service":
				_, err = loadServiceConfig(path)
			case "store":
				_, err = config.LoadStoreConfig(path)
			default:
				return fmt.Errorf("unknown config kind: %s (want one of %s)", kind, strings.Join(config.Kinds(), ", "))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "validated %s config at %s\n", kind, path)
			return nil
		},
	}

	cmd.AddCommand(initCmd, checkCmd)
	return cmd
}
