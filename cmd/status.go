package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/tardis-cli/internal/engine"
	"github.com/spf13/cobra"
)

var statusOut outputFlags

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Load the dataset and model and report what was kept",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine(cmd, true)
		if err != nil {
			return err
		}
		st := eng.Status()
		if err := statusOut.emit(cmd, st, renderStatus(st)); err != nil {
			return err
		}
		if st.Dataset == nil {
			return errors.New("dataset not loaded")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusOut.register(statusCmd)
}

func renderStatus(st engine.Status) string {
	var b strings.Builder
	b.WriteString("[DATASET]\n")
	if rep := st.Dataset; rep != nil {
		b.WriteString(fmt.Sprintf("✓ %s: %d of %d rows loaded\n", rep.Name, rep.Loaded, rep.Rows))
		if rep.Rejected > 0 {
			b.WriteString(fmt.Sprintf("- rejected rows: %d\n", rep.Rejected))
		}
		if rep.MissingDates > 0 {
			b.WriteString(fmt.Sprintf("- rows without date: %d\n", rep.MissingDates))
		}
		for _, w := range rep.Warnings {
			b.WriteString("- " + w + "\n")
		}
	} else {
		b.WriteString(fmt.Sprintf("✗ %s\n", st.DatasetError))
	}
	if cur := st.Current; cur != nil {
		if cur.First != nil {
			b.WriteString(fmt.Sprintf("- dates: %s to %s\n", cur.First.Format("2006-01-02"), cur.Last.Format("2006-01-02")))
		}
		b.WriteString(fmt.Sprintf("- stations: %d\n", cur.Stations))
		if len(cur.Services) > 0 {
			b.WriteString(fmt.Sprintf("- services: %s\n", strings.Join(cur.Services, ", ")))
		}
	}
	b.WriteString("\n[MODEL]\n")
	switch {
	case st.ModelError != "":
		b.WriteString(fmt.Sprintf("✗ %s\n", st.ModelError))
	default:
		b.WriteString(fmt.Sprintf("✓ %s\n", st.Model))
	}
	return b.String()
}
