package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"supplies-portal/internal/forecast"
	"supplies-portal/internal/services"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type forecastRow struct {
	MedicationID      string              `json:"medication_id"`
	DisplayName       string              `json:"display_name"`
	Unit              string              `json:"unit"`
	WeeklyConsumption decimal.Decimal     `json:"weekly_consumption"`
	CurrentStock      decimal.Decimal     `json:"current_stock"`
	DaysRemaining     decimal.NullDecimal `json:"days_remaining"`
	RunoutDate        string              `json:"runout_date,omitempty"`
	PurchaseByDate    string              `json:"purchase_by_date,omitempty"`
	Reorder           string              `json:"reorder,omitempty"`
}

type forecastOutput struct {
	Today    string             `json:"today"`
	Items    []forecastRow      `json:"items"`
	Warnings []forecast.Warning `json:"warnings"`
}

func newForecastCmd(opts *options) *cobra.Command {
	var reorderOnly bool

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Compute the supplies forecast from the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			svc, err := e.portal()
			if err != nil {
				return err
			}
			report, err := svc.Forecast(ctx)
			var missing *forecast.MissingColumnsError
			if errors.As(err, &missing) {
				return fmt.Errorf("worksheets are missing required columns: %s", strings.Join(missing.Names(), ", "))
			}
			if err != nil {
				return err
			}

			severity := make(map[string]string)
			for _, alert := range services.ReorderAlerts(report, svc.WarnWithinDays()) {
				severity[itemKey(alert.Item)] = alert.Severity
			}

			result := forecastOutput{Today: report.Today.Format("2006-01-02"), Warnings: report.Warnings}
			for _, item := range report.Items {
				reorder := severity[itemKey(item)]
				if reorderOnly && reorder == "" {
					continue
				}
				result.Items = append(result.Items, forecastRow{
					MedicationID:      item.MedicationID,
					DisplayName:       item.DisplayName,
					Unit:              item.Unit,
					WeeklyConsumption: item.WeeklyConsumption,
					CurrentStock:      item.CurrentStock,
					DaysRemaining:     item.DaysRemaining,
					RunoutDate:        formatDate(item.RunoutDate),
					PurchaseByDate:    formatDate(item.PurchaseByDate),
					Reorder:           reorder,
				})
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return printJSON(out, result)
			}
			return printForecast(out, result)
		},
	}

	cmd.Flags().BoolVar(&reorderOnly, "reorder", false, "only show items that are due or overdue for purchase")
	return cmd
}

func itemKey(item forecast.Item) string {
	return item.MedicationID + "\x00" + item.Unit
}

func printForecast(out io.Writer, result forecastOutput) error {
	fmt.Fprintf(out, "Forecast for %s\n\n", result.Today)
	if len(result.Items) == 0 {
		fmt.Fprintln(out, "No items.")
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tUNIT\tWEEKLY\tSTOCK\tDAYS\tRUNOUT\tBUY BY\tREORDER")
		fmt.Fprintln(w, "--\t----\t----\t------\t-----\t----\t------\t------\t-------")
		for _, r := range result.Items {
			days := "-"
			if r.DaysRemaining.Valid {
				days = r.DaysRemaining.Decimal.StringFixed(1)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				r.MedicationID, r.DisplayName, dash(r.Unit),
				r.WeeklyConsumption.Round(2).String(), r.CurrentStock.Round(2).String(), days,
				dash(r.RunoutDate), dash(r.PurchaseByDate), dash(r.Reorder))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Fprintf(out, "\nSkipped rows:\n")
		for _, warn := range result.Warnings {
			fmt.Fprintf(out, "  %s\n", warn.Message())
		}
	}
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
