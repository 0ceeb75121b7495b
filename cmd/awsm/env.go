package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/awsm-dev/awsm/internal/errdef"
	"github.com/awsm-dev/awsm/internal/workspace"
)

func (a *app) envCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Manage workspace environments",
	}
	cmd.AddCommand(a.envLoadCommand(), a.envListCommand(), a.envUseCommand())
	return cmd
}

func (a *app) envLoadCommand() *cobra.Command {
	var (
		name     string
		activate bool
	)
	cmd := &cobra.Command{
		Use:   "load <file.env>",
		Short: "Create an environment from a dotenv file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := workspace.Load(a.workspacePath)
			if err != nil {
				return err
			}
			env, err := ws.Variables().LoadDotEnv(args[0], name)
			if err != nil {
				return err
			}
			if activate {
				if err := ws.Variables().SetActive(env.ID); err != nil {
					return err
				}
			}
			if err := workspace.Save(a.workspacePath, ws); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded environment %q (%d variables)\n", env.Name, len(env.Variables))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Environment name (derived from the file when empty)")
	cmd.Flags().BoolVar(&activate, "use", false, "Make the loaded environment active")
	return cmd
}

func (a *app) envListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List environments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := workspace.Load(a.workspacePath)
			if err != nil {
				return err
			}
			state := ws.Variables().Snapshot()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ACTIVE\tID\tNAME\tVARIABLES")
			for _, env := range state.Environments {
				mark := ""
				if env.ID == state.ActiveID {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", mark, env.ID, env.Name, len(env.Variables))
			}
			return tw.Flush()
		},
	}
}

func (a *app) envUseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "use <id|name>",
		Short: "Set the active environment; an empty name clears it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := workspace.Load(a.workspacePath)
			if err != nil {
				return err
			}
			id := ""
			if args[0] != "" {
				env, ok := ws.Variables().Find(args[0])
				if !ok {
					return errdef.New(errdef.CodeValidation, "environment %q not found", args[0])
				}
				id = env.ID
			}
			if err := ws.Variables().SetActive(id); err != nil {
				return err
			}
			return workspace.Save(a.workspacePath, ws)
		},
	}
}
