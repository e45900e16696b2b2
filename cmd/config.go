package cmd

import (
	"fmt"
	"strconv"
	"strings"

	cfgpkg "github.com/KaramelBytes/tardis-cli/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set TARDIS configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureConfig(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "dataset_path: %s\n", cfg.DatasetPath)
		if cfg.DatasetSheet != "" {
			fmt.Fprintf(out, "dataset_sheet: %s\n", cfg.DatasetSheet)
		}
		fmt.Fprintf(out, "dataset_table: %s\n", cfg.DatasetTable)
		if cfg.Delimiter != "" {
			fmt.Fprintf(out, "delimiter: %q\n", cfg.Delimiter)
		}
		if cfg.DecimalSeparator != "" {
			fmt.Fprintf(out, "decimal_separator: %q\n", cfg.DecimalSeparator)
		}
		if cfg.MaxRows > 0 {
			fmt.Fprintf(out, "max_rows: %d\n", cfg.MaxRows)
		}
		fmt.Fprintf(out, "model_path: %s\n", cfg.ModelPath)
		fmt.Fprintf(out, "model_info_path: %s\n", cfg.ModelInfoPath)
		fmt.Fprintf(out, "importance_top_n: %d\n", cfg.ImportanceTopN)
		fmt.Fprintf(out, "fallback_scope: %s\n", cfg.FallbackScope)
		fmt.Fprintf(out, "top_k: %d\n", cfg.TopK)
		fmt.Fprintf(out, "compare_max_routes: %d\n", cfg.CompareMaxRoutes)
		fmt.Fprintf(out, "listen_addr: %s\n", cfg.ListenAddr)
		fmt.Fprintf(out, "allowed_origins: %s\n", strings.Join(cfg.AllowedOrigins, ","))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if err := ensureConfig(); err != nil {
			return err
		}
		next := *cfg
		switch key {
		case "dataset_path":
			next.DatasetPath = val
		case "dataset_sheet":
			next.DatasetSheet = val
		case "dataset_table":
			next.DatasetTable = val
		case "delimiter":
			next.Delimiter = val
		case "decimal_separator":
			next.DecimalSeparator = val
		case "max_rows", "importance_top_n", "top_k", "compare_max_routes":
			i, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid int for %s: %v", key, val)
			}
			switch key {
			case "max_rows":
				next.MaxRows = i
			case "importance_top_n":
				next.ImportanceTopN = i
			case "top_k":
				next.TopK = i
			default:
				next.CompareMaxRoutes = i
			}
		case "model_path":
			next.ModelPath = val
		case "model_info_path":
			next.ModelInfoPath = val
		case "fallback_scope":
			next.FallbackScope = strings.ToLower(val)
		case "listen_addr":
			next.ListenAddr = val
		case "allowed_origins":
			next.AllowedOrigins = splitList(val)
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		if err := next.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(&next, cfgFile); err != nil {
			return err
		}
		cfg = &next
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
