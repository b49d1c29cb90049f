package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/licitaflow/stagegate/internal/domain"
	"github.com/licitaflow/stagegate/internal/tools"
)

func newToolsCommand(ctx *commandContext) *cobra.Command {
	var active, order []string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Show the tool catalog and activation eligibility",
		Example: "  stagegate tools --active comments,signatures\n" +
			"  stagegate tools --active comments,doc_view --order doc_view,comments",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := ctx.catalog()
			if err != nil {
				return err
			}
			resolver := tools.NewResolver(catalog)

			activeKinds, err := toolKinds(active)
			if err != nil {
				return err
			}
			orderKinds, err := toolKinds(order)
			if err != nil {
				return err
			}
			set := tools.NewSet(activeKinds...)

			rows := make([][]string, 0, len(domain.AllToolKinds))
			for _, kind := range resolver.AvailableTools(set) {
				meta, err := resolver.MetadataOf(kind)
				if err != nil {
					return err
				}
				ok, err := resolver.CanActivate(kind, set)
				if err != nil {
					return err
				}
				rows = append(rows, []string{
					string(kind),
					meta.Label,
					string(meta.DependsOn),
					yesNo(set.Has(kind)),
					yesNo(ok),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Tool", "Label", "Depends on", "Active", "Can activate"},
				rows,
				nil,
			))
			if len(activeKinds) > 0 {
				fmt.Fprintf(out, "Display order: %s\n", joinKinds(resolver.OrderedActive(set, orderKinds)))
				fmt.Fprintf(out, "Normalized order: %s\n", joinKinds(resolver.NormalizeOrder(set, orderKinds)))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&active, "active", nil, "Currently active tools")
	cmd.Flags().StringSliceVar(&order, "order", nil, "Saved display order")
	return cmd
}

func toolKinds(values []string) ([]domain.ToolKind, error) {
	out := make([]domain.ToolKind, 0, len(values))
	for _, v := range values {
		k := domain.ToolKind(strings.TrimSpace(v))
		if !k.IsKnown() {
			return nil, domain.NewEngineError(domain.ErrUnknownTool.Code,
				fmt.Sprintf("%s: %q", domain.ErrUnknownTool.Message, v))
		}
		out = append(out, k)
	}
	return out, nil
}

func joinKinds(kinds []domain.ToolKind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
