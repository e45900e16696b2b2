package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/tardis-cli/internal/analysis"
	"github.com/KaramelBytes/tardis-cli/internal/utils"
	"github.com/spf13/cobra"
)

// filterFlags are the view predicates shared by the analytics and predict commands.
type filterFlags struct {
	start   string
	end     string
	station string
	service string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.start, "start", "", "first day to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "last day to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.station, "station", "", "keep trips departing from or arriving at this station")
	cmd.Flags().StringVar(&f.service, "service", "", "keep trips of this service (ignored when the dataset has one service)")
}

func (f *filterFlags) predicates() (analysis.Predicates, error) {
	var p analysis.Predicates
	for _, d := range []struct {
		raw  string
		name string
		dst  **time.Time
	}{{f.start, "start", &p.Start}, {f.end, "end", &p.End}} {
		if d.raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", d.raw)
		if err != nil {
			return p, fmt.Errorf("invalid --%s %q (want YYYY-MM-DD)", d.name, d.raw)
		}
		*d.dst = &t
	}
	if p.Start != nil && p.End != nil && p.End.Before(*p.Start) {
		return p, fmt.Errorf("--end %s is before --start %s", f.end, f.start)
	}
	p.Station = strings.TrimSpace(f.station)
	p.Service = strings.TrimSpace(f.service)
	return p, nil
}

// outputFlags pick the report format and destination.
type outputFlags struct {
	json bool
	path string
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.json, "json", false, "print JSON instead of the text report")
	cmd.Flags().StringVarP(&o.path, "output", "o", "", "optional path to write the report")
}

// emit writes v as JSON or md as text, to --output or stdout.
func (o *outputFlags) emit(cmd *cobra.Command, v any, md string) error {
	body := []byte(md)
	if o.json {
		b, err := utils.PrettyJSON(v)
		if err != nil {
			return err
		}
		body = append(b, '\n')
	}
	if o.path != "" {
		if err := utils.SafeWriteFile(o.path, body); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote report to %s\n", o.path)
		return nil
	}
	_, err := cmd.OutOrStdout().Write(body)
	return err
}

// analyticsCommand wires the shared flags of a command that reads a filtered view.
func analyticsCommand(cmd *cobra.Command, run func(cmd *cobra.Command, args []string, v analysis.View, out *outputFlags) error) *cobra.Command {
	var (
		ff filterFlags
		of outputFlags
	)
	ff.register(cmd)
	of.register(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		p, err := ff.predicates()
		if err != nil {
			return err
		}
		eng, err := openEngine(cmd, false)
		if err != nil {
			return err
		}
		v, err := eng.View(p)
		if err != nil {
			return err
		}
		if v.Empty() {
			fmt.Fprintln(cmd.ErrOrStderr(), "⚠ Warning: no trips match the filters")
		}
		return run(cmd, args, v, &of)
	}
	return cmd
}
