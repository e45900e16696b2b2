package analysis

import (
	"fmt"
	"strings"
)

// Markdown renders the overview as a compact report.
func (o Overview) Markdown() string {
	var b strings.Builder
	b.WriteString("[KEY METRICS]\n")
	b.WriteString(fmt.Sprintf("Records: %d\n", o.Records))
	writeStat(&b, "Average delay", o.AverageDelay, "%.2f min")
	writeStat(&b, "Cancelled trains", o.CancelledTrains, "%.0f")
	writeStat(&b, "Trains > 15min late", o.DelayedOver15, "%.0f")
	writeStat(&b, "Avg delay score", o.AverageDelayScore, "%.2f%%")
	if len(o.MonthlyTrend) > 0 {
		b.WriteString("\n[MONTHLY DELAY TRENDS]\n")
		writeGroups(&b, o.MonthlyTrend, "%.2f min")
	}
	if len(o.Causes) > 0 {
		b.WriteString("\n[DELAY CAUSES]\n")
		writeGroups(&b, o.Causes, "%.1f%%")
	}
	return b.String()
}

// Markdown renders the delay distribution report.
func (d DelayAnalysis) Markdown() string {
	var b strings.Builder
	b.WriteString("[DELAY STATISTICS]\n")
	if d.Stats == nil {
		b.WriteString("- no arrival delay values in the current selection\n")
	} else {
		s := d.Stats
		b.WriteString(fmt.Sprintf("- min %.2f, max %.2f, median %.2f, std %.2f (n=%d)\n", s.Min, s.Max, s.Median, s.Std, s.Count))
		if s.Outliers > 0 {
			b.WriteString(fmt.Sprintf("- outliers: %d above |z|>%.1f\n", s.Outliers, s.OutlierThreshold))
		}
	}
	if len(d.Seasons) > 0 {
		b.WriteString("\n[SEASONAL PATTERNS]\n")
		writeGroups(&b, d.Seasons, "%.2f min")
	}
	if len(d.Categories) > 0 {
		b.WriteString("\n[DELAY SEVERITY]\n")
		writeGroups(&b, d.Categories, "%.0f")
	}
	return b.String()
}

// Markdown renders the station rankings.
func (s StationInsights) Markdown() string {
	var b strings.Builder
	b.WriteString("[TOP DEPARTURE STATIONS BY DELAY]\n")
	writeGroups(&b, s.TopDeparture, "%.2f min")
	b.WriteString("\n[TOP ARRIVAL STATIONS BY DELAY]\n")
	writeGroups(&b, s.TopArrival, "%.2f min")
	return b.String()
}

// Markdown renders a station profile.
func (p StationProfile) Markdown() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s AS DEPARTURE STATION]\n", strings.ToUpper(p.Station)))
	writeSide(&b, p.AsDeparture, "Average departure delay")
	b.WriteString(fmt.Sprintf("\n[%s AS ARRIVAL STATION]\n", strings.ToUpper(p.Station)))
	writeSide(&b, p.AsArrival, "Average arrival delay")
	return b.String()
}

// Markdown renders the route ranking.
func (r RouteInsights) Markdown() string {
	var b strings.Builder
	b.WriteString("[TOP ROUTES BY DELAY]\n")
	writeGroups(&b, r.Top, "%.2f min")
	b.WriteString(fmt.Sprintf("\nRoutes in selection: %d\n", len(r.Routes)))
	return b.String()
}

// Markdown renders a route comparison.
func (c RouteComparison) Markdown() string {
	var b strings.Builder
	b.WriteString("[ROUTE COMPARISON]\n")
	writeGroups(&b, c.Means, "%.2f min")
	for _, s := range c.Monthly {
		b.WriteString(fmt.Sprintf("\n[MONTHLY] %s\n", s.Route))
		writeGroups(&b, s.Groups, "%.2f min")
	}
	for _, s := range c.Causes {
		b.WriteString(fmt.Sprintf("\n[CAUSES] %s\n", s.Route))
		writeGroups(&b, s.Groups, "%.1f%%")
	}
	return b.String()
}

func writeSide(b *strings.Builder, s StationSide, label string) {
	if s.Records == 0 {
		b.WriteString("- no trips\n")
		return
	}
	b.WriteString(fmt.Sprintf("- trips: %d\n", s.Records))
	writeStat(b, label, s.AverageDelay, "%.2f min")
	for _, g := range s.Monthly {
		b.WriteString(fmt.Sprintf("  • %s: %.2f min\n", g.Key, g.Value))
	}
}

func writeStat(b *strings.Builder, label string, s Stat, format string) {
	if !s.Available {
		b.WriteString(fmt.Sprintf("- %s: N/A (data not available)\n", label))
		return
	}
	b.WriteString(fmt.Sprintf("- %s: "+format+"\n", label, s.Value))
}

func writeGroups(b *strings.Builder, gs []Group, format string) {
	if len(gs) == 0 {
		b.WriteString("- (none)\n")
		return
	}
	for _, g := range gs {
		b.WriteString(fmt.Sprintf("- %s: "+format+" (n=%d)\n", safeVal(g.Key), g.Value, g.Count))
	}
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
