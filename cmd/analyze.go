package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/tardis-cli/internal/analysis"
	"github.com/spf13/cobra"
)

var (
	aggGroup   string
	aggMetric  string
	aggReducer string
	aggTop     int
	aggAsc     bool
	rankTop    int
)

var overviewCmd = analyticsCommand(&cobra.Command{
	Use:   "overview",
	Short: "Key metrics, monthly trend and delay causes",
	Args:  cobra.NoArgs,
}, func(cmd *cobra.Command, args []string, v analysis.View, out *outputFlags) error {
	ov := analysis.BuildOverview(v)
	return out.emit(cmd, ov, ov.Markdown())
})

var delaysCmd = analyticsCommand(&cobra.Command{
	Use:     "delays",
	Aliases: []string{"analyze"},
	Short:   "Delay statistics, seasonal pattern and severity counts",
	Args:    cobra.NoArgs,
}, func(cmd *cobra.Command, args []string, v analysis.View, out *outputFlags) error {
	d := analysis.AnalyzeDelays(v)
	return out.emit(cmd, d, d.Markdown())
})

var aggregateCmd = analyticsCommand(&cobra.Command{
	Use:   "aggregate",
	Short: "Group trips by a key and reduce a delay metric",
	Args:  cobra.NoArgs,
}, func(cmd *cobra.Command, args []string, v analysis.View, out *outputFlags) error {
	key, err := analysis.ParseGroupKey(aggGroup)
	if err != nil {
		return err
	}
	red, err := analysis.ParseReducer(aggReducer)
	if err != nil {
		return err
	}
	metric := analysis.Metric(aggMetric)
	if !v.HasColumn(aggMetric) && key != analysis.ByCause {
		fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: column %q not found in dataset\n", aggMetric)
	}
	var gs []analysis.Group
	if aggTop > 0 {
		order := analysis.Desc
		if aggAsc {
			order = analysis.Asc
		}
		gs = analysis.TopK(v, key, metric, red, aggTop, order)
	} else {
		gs = analysis.Aggregate(v, key, metric, red)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s OF %s BY %s]\n", strings.ToUpper(red.String()), strings.ToUpper(aggMetric), strings.ToUpper(key.String())))
	if len(gs) == 0 {
		b.WriteString("- (none)\n")
	}
	for _, g := range gs {
		b.WriteString(fmt.Sprintf("- %s: %.2f (n=%d)\n", g.Key, g.Value, g.Count))
	}
	return out.emit(cmd, gs, b.String())
})

var stationsCmd = analyticsCommand(&cobra.Command{
	Use:   "stations [name]",
	Short: "Rank stations by delay, or profile one station",
	Args:  cobra.MaximumNArgs(1),
}, func(cmd *cobra.Command, args []string, v analysis.View, out *outputFlags) error {
	if len(args) == 1 {
		p := analysis.ProfileStation(v, args[0])
		if p.AsDeparture.Records == 0 && p.AsArrival.Records == 0 {
			return fmt.Errorf("no trips for station %q", args[0])
		}
		return out.emit(cmd, p, p.Markdown())
	}
	s := analysis.RankStations(v, topK(cmd))
	return out.emit(cmd, s, s.Markdown())
})

var routesCmd = analyticsCommand(&cobra.Command{
	Use:   "routes",
	Short: "Rank routes by delay",
	Args:  cobra.NoArgs,
}, func(cmd *cobra.Command, args []string, v analysis.View, out *outputFlags) error {
	r := analysis.RankRoutes(v, topK(cmd))
	return out.emit(cmd, r, r.Markdown())
})

var routesCompareCmd = analyticsCommand(&cobra.Command{
	Use:   "compare <\"DEP - ARR\">...",
	Short: "Compare the delays of up to five routes",
	Args:  cobra.MinimumNArgs(1),
}, func(cmd *cobra.Command, args []string, v analysis.View, out *outputFlags) error {
	limit := analysis.MaxCompareRoutes
	if cfg != nil && cfg.CompareMaxRoutes > 0 && cfg.CompareMaxRoutes < limit {
		limit = cfg.CompareMaxRoutes
	}
	if len(args) > limit {
		return fmt.Errorf("%w: %d requested, at most %d", analysis.ErrTooManyRoutes, len(args), limit)
	}
	c, err := analysis.Compare(v, args)
	if err != nil {
		return err
	}
	return out.emit(cmd, c, c.Markdown())
})

// topK is --top when set, else the configured ranking size.
func topK(cmd *cobra.Command) int {
	if cmd.Flags().Changed("top") && rankTop > 0 {
		return rankTop
	}
	if cfg != nil && cfg.TopK > 0 {
		return cfg.TopK
	}
	return analysis.DefaultTopK
}

func init() {
	rootCmd.AddCommand(overviewCmd, delaysCmd, aggregateCmd, stationsCmd, routesCmd)
	routesCmd.AddCommand(routesCompareCmd)

	aggregateCmd.Flags().StringVar(&aggGroup, "by", "month", "group key: month|departure|arrival|station|route|season|category|cause")
	aggregateCmd.Flags().StringVar(&aggMetric, "metric", string(analysis.ArrivalDelay), "numeric column to reduce")
	aggregateCmd.Flags().StringVar(&aggReducer, "reducer", "mean", "reducer: mean|sum|count")
	aggregateCmd.Flags().IntVar(&aggTop, "top", 0, "keep only the k best groups (0 = all, in key order)")
	aggregateCmd.Flags().BoolVar(&aggAsc, "asc", false, "with --top, keep the lowest values instead of the highest")

	stationsCmd.Flags().IntVar(&rankTop, "top", analysis.DefaultTopK, "number of stations to rank (default from config top_k)")
	routesCmd.Flags().IntVar(&rankTop, "top", analysis.DefaultTopK, "number of routes to rank (default from config top_k)")
}
