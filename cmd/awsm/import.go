package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/awsm-dev/awsm/internal/errdef"
	"github.com/awsm-dev/awsm/internal/importer/postman"
	"github.com/awsm-dev/awsm/internal/model"
	"github.com/awsm-dev/awsm/internal/workspace"
)

func (a *app) importCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import requests from other tools",
	}
	cmd.AddCommand(a.importPostmanCommand())
	return cmd
}

func (a *app) importPostmanCommand() *cobra.Command {
	var parent string
	cmd := &cobra.Command{
		Use:   "postman <collection.json>",
		Short: "Import a Postman v2.1 collection into the workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return errdef.Wrap(errdef.CodeFilesystem, err, "open %s", args[0])
			}
			defer f.Close()
			collection, err := postman.Parse(f)
			if err != nil {
				return err
			}

			ws, err := workspace.Load(a.workspacePath)
			if err != nil {
				return err
			}
			im := postman.Importer{}
			nodes, rootIDs := im.Import(collection)
			if err := ws.Graft(parent, nodes, rootIDs); err != nil {
				return err
			}
			if imported := im.Variables(collection); len(imported) > 0 {
				ws.Variables().SetGlobals(mergeVariables(ws.Variables().Snapshot().Globals, imported))
			}
			if err := workspace.Save(a.workspacePath, ws); err != nil {
				return err
			}

			requests := 0
			for _, n := range nodes {
				if n.Type == model.NodeRequest {
					requests++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d requests from %q into %s\n",
				requests, strings.TrimSpace(collection.Info.Name), a.workspacePath)
			return nil
		},
	}
	cmd.Flags().StringVar(&parent, "into", "", "Id of the collection node to import under")
	return cmd
}

// mergeVariables overwrites existing keys in place and appends new ones.
func mergeVariables(existing, incoming []model.Variable) []model.Variable {
	out := append([]model.Variable(nil), existing...)
	for _, v := range incoming {
		replaced := false
		for i := range out {
			if out[i].Key == v.Key {
				out[i].Value = v.Value
				out[i].Enabled = v.Enabled
				replaced = true
			}
		}
		if !replaced {
			out = append(out, v)
		}
	}
	return out
}
