package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newProgressCommand(ctx *commandContext) *cobra.Command {
	var start, end, today string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Compute business-day progress of a stage deadline",
		Example: "  stagegate progress --start 2024-01-01 --end 2024-01-10 --today 2024-01-05\n" +
			"  stagegate progress --start 01/01/2024 --end 10/01/2024",
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := ctx.calendar()
			if err != nil {
				return err
			}
			if today == "" {
				today = cal.Today(time.Now()).Format("2006-01-02")
			}
			p, err := cal.CalculateStrings(start, end, today)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			}

			tier := string(p.Tier)
			if shouldColorize(out) {
				tier = tierColors(p.Tier).Sprint(tier)
			}
			rows := [][]string{{
				start,
				end,
				today,
				strconv.Itoa(p.ElapsedDays),
				strconv.Itoa(p.TotalDays),
				fmt.Sprintf("%d%%", p.Percent),
				fmt.Sprintf("%d%%", p.RawPercent),
				tier,
			}}
			fmt.Fprintln(out, renderTable(
				[]string{"Start", "End", "Today", "Elapsed", "Total", "Progress", "Raw", "Tier"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Stage start date (YYYY-MM-DD or dd/MM/yyyy)")
	cmd.Flags().StringVar(&end, "end", "", "Stage deadline (YYYY-MM-DD or dd/MM/yyyy)")
	cmd.Flags().StringVar(&today, "today", "", "Reference date; defaults to the current date")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}
