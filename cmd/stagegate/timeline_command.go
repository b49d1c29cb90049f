package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/licitaflow/stagegate/internal/domain"
	"github.com/licitaflow/stagegate/internal/timeline"
)

func newTimelineCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "timeline FILE",
		Short: "Group a JSON array of timeline events by calendar day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read events: %w", err)
			}
			var events []domain.TimelineEvent
			if err := json.Unmarshal(data, &events); err != nil {
				return fmt.Errorf("parse events: %w", err)
			}

			cal, err := ctx.calendar()
			if err != nil {
				return err
			}
			groups := timeline.NewAggregator(cal.Location).GroupByDay(events)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(groups)
			}
			if len(groups) == 0 {
				fmt.Fprintln(out, "No events.")
				return nil
			}

			title := cases.Title(language.BrazilianPortuguese)
			for _, g := range groups {
				fmt.Fprintf(out, "== %s ==\n", g.Label)
				rows := make([][]string, 0, len(g.Items))
				for _, ev := range g.Items {
					rows = append(rows, []string{
						ev.CreatedAt.In(cal.Location).Format("15:04"),
						title.String(strings.ReplaceAll(string(ev.Status), "_", " ")),
						ev.Title,
						ev.Author.Name,
						attachmentSummary(ev.Attachments),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Time", "Status", "Title", "Author", "Attachments"},
					rows,
					nil,
				))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the grouped events as JSON")
	return cmd
}

func attachmentSummary(atts []domain.Attachment) string {
	parts := make([]string, 0, len(atts))
	for _, a := range atts {
		if a.Size > 0 {
			parts = append(parts, fmt.Sprintf("%s (%s)", a.Name, humanize.Bytes(uint64(a.Size))))
		} else {
			parts = append(parts, a.Name)
		}
	}
	return strings.Join(parts, ", ")
}
