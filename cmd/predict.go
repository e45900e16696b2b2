package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/tardis-cli/internal/analysis"
	"github.com/KaramelBytes/tardis-cli/internal/dataset"
	"github.com/KaramelBytes/tardis-cli/internal/engine"
	"github.com/KaramelBytes/tardis-cli/internal/features"
	"github.com/spf13/cobra"
)

var (
	predFrom      string
	predTo        string
	predOverrides []string
	predFilters   filterFlags
	predOut       outputFlags
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict the arrival delay of a route",
	Long: `Predict the arrival delay of a route with the configured model. Features not given with
--set are filled from the route's history, then the whole filtered history, then defaults.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		route := dataset.Route{Departure: strings.TrimSpace(predFrom), Arrival: strings.TrimSpace(predTo)}
		if route.Departure == "" || route.Arrival == "" {
			return fmt.Errorf("--from and --to are required")
		}
		overrides, err := parseOverrides(predOverrides)
		if err != nil {
			return err
		}
		p, err := predFilters.predicates()
		if err != nil {
			return err
		}
		eng, err := openEngine(cmd, true)
		if err != nil {
			return err
		}
		res, err := eng.Predict(engine.PredictRequest{Filters: p, Route: route, Overrides: overrides})
		if err != nil {
			return err
		}
		for _, w := range res.Resolution.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: %s\n", w.Message)
		}
		return predOut.emit(cmd, res, renderPrediction(res))
	},
}

var departuresCmd = &cobra.Command{
	Use:   "departures",
	Short: "List the departure stations offered for prediction",
	Args:  cobra.NoArgs,
}

var arrivalsCmd = &cobra.Command{
	Use:   "arrivals <departure>",
	Short: "List the arrival stations offered for a departure",
	Args:  cobra.ExactArgs(1),
}

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.Flags().StringVar(&predFrom, "from", "", "departure station")
	predictCmd.Flags().StringVar(&predTo, "to", "", "arrival station")
	predictCmd.Flags().StringArrayVar(&predOverrides, "set", nil, "override a feature: --set 'name=value' (repeatable)")
	predFilters.register(predictCmd)
	predOut.register(predictCmd)

	predictCmd.AddCommand(analyticsCommand(departuresCmd, func(cmd *cobra.Command, args []string, v analysis.View, out *outputFlags) error {
		deps := features.Departures(v)
		return out.emit(cmd, deps, bulletList("DEPARTURE STATIONS", deps))
	}))
	predictCmd.AddCommand(analyticsCommand(arrivalsCmd, func(cmd *cobra.Command, args []string, v analysis.View, out *outputFlags) error {
		arr, warn := features.ArrivalCandidates(v, args[0])
		if warn != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: %s\n", warn.Message)
		}
		return out.emit(cmd, arr, bulletList("ARRIVAL STATIONS FROM "+strings.ToUpper(args[0]), arr))
	}))
}

// parseOverrides reads name=value pairs; numeric features parse their value later.
func parseOverrides(pairs []string) (features.Vector, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	vec := features.Vector{}
	for _, kv := range pairs {
		name, val, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q (want name=value)", kv)
		}
		vec[name] = features.Label(strings.TrimSpace(val))
	}
	return vec, nil
}

func bulletList(title string, items []string) string {
	var b strings.Builder
	b.WriteString("[" + title + "]\n")
	if len(items) == 0 {
		b.WriteString("- (none)\n")
	}
	for _, it := range items {
		b.WriteString("- " + it + "\n")
	}
	return b.String()
}

func renderPrediction(res *engine.PredictResult) string {
	var b strings.Builder
	p := res.Prediction
	b.WriteString("[PREDICTION]\n")
	b.WriteString(fmt.Sprintf("- Route: %s\n", res.Resolution.Route.Key()))
	b.WriteString(fmt.Sprintf("- Predicted arrival delay: %.1f min\n", p.Minutes))
	b.WriteString(fmt.Sprintf("- Category: %s\n", p.Category))
	b.WriteString(fmt.Sprintf("- Model: %s\n", p.Model))

	b.WriteString("\n[ROUTE HISTORY]\n")
	b.WriteString(fmt.Sprintf("- trips: %d\n", res.Route.Records))
	writeStat(&b, "Average departure delay", res.Route.DepartureDelay, "%.2f min")
	writeStat(&b, "Average arrival delay", res.Route.ArrivalDelay, "%.2f min")
	writeStat(&b, "Average journey time", res.Route.JourneyTime, "%.1f min")

	b.WriteString("\n[MODEL INPUTS]\n")
	names := res.Resolution.Vector.Names()
	sort.Strings(names)
	for _, n := range names {
		b.WriteString(fmt.Sprintf("- %s: %s (%s)\n", n, res.Resolution.Vector[n], res.Resolution.Tiers[n]))
	}

	if len(p.Importances) > 0 {
		b.WriteString("\n[MOST INFLUENTIAL FEATURES]\n")
		for _, im := range p.Importances {
			b.WriteString(fmt.Sprintf("- %s: %.4f\n", im.Feature, im.Weight))
		}
	} else if len(res.Factors) > 0 {
		b.WriteString("\n[GENERAL DELAY FACTORS]\n")
		for _, f := range res.Factors {
			b.WriteString("- " + f + "\n")
		}
	}
	return b.String()
}

func writeStat(b *strings.Builder, label string, s analysis.Stat, format string) {
	if !s.Available {
		b.WriteString(fmt.Sprintf("- %s: N/A (data not available)\n", label))
		return
	}
	b.WriteString(fmt.Sprintf("- %s: "+format+"\n", label, s.Value))
}
