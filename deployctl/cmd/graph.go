package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/whatnick/frontend-deployment/internal/graph"
)

func newGraphCmd() *cobra.Command {
	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the resource graph of the synthesized stack",
		Long: `graph reads the template written by cdk synth and prints the dependency graph
between its resources, or with --order the sequence the resources are created in`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			templatePath, _ := cmd.Flags().GetString("template")
			format, _ := cmd.Flags().GetString("format")
			cluster, _ := cmd.Flags().GetBool("cluster")
			order, _ := cmd.Flags().GetBool("order")

			if templatePath == "" {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				templatePath = filepath.Join("cdk.out", cfg.StackName+".template.json")
			}

			tmpl, err := graph.LoadTemplate(templatePath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if order {
				ids, err := graph.Order(tmpl)
				if err != nil {
					return err
				}
				for i, id := range ids {
					fmt.Fprintf(out, "%3d  %-60s %s\n", i+1, id, tmpl.Resources[id].Type)
				}
				return nil
			}

			switch graph.Format(format) {
			case graph.FormatDOT, graph.FormatMermaid:
			default:
				return errors.Errorf("unknown graph format %q, want dot or mermaid", format)
			}
			gen := &graph.Generator{Format: graph.Format(format), ClusterByService: cluster}
			return gen.Generate(tmpl, out)
		},
	}

	graphCmd.Flags().String("template", "", "synthesized template; defaults to cdk.out/<stack name>.template.json")
	graphCmd.Flags().String("format", string(graph.FormatDOT), "output format: dot or mermaid")
	graphCmd.Flags().Bool("cluster", false, "group resources by AWS service")
	graphCmd.Flags().Bool("order", false, "print the creation order instead of the graph")
	return graphCmd
}
