package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/tardis-cli/internal/model"
	"github.com/KaramelBytes/tardis-cli/internal/server"
	"github.com/spf13/cobra"
)

var modelOut outputFlags

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Show the loaded model and its features",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine(cmd, true)
		if err != nil {
			return err
		}
		a, err := eng.Model()
		if err != nil {
			return err
		}
		info := server.ModelResponse{Metadata: a.Metadata(), Explains: a.Explains()}
		if !info.Explains {
			info.Factors = model.GeneralFactors
		}
		return modelOut.emit(cmd, info, renderModel(info))
	},
}

func init() {
	rootCmd.AddCommand(modelCmd)
	modelOut.register(modelCmd)
}

func renderModel(info server.ModelResponse) string {
	var b strings.Builder
	b.WriteString("[MODEL]\n")
	b.WriteString(fmt.Sprintf("- Name: %s\n", info.ModelName))
	if m := info.Metrics; m != nil {
		if m.RMSE != nil {
			b.WriteString(fmt.Sprintf("- RMSE: %.3f\n", *m.RMSE))
		}
		if m.R2 != nil {
			b.WriteString(fmt.Sprintf("- R²: %.3f\n", *m.R2))
		}
	}
	b.WriteString(fmt.Sprintf("- Feature importances: %v\n", info.Explains))
	b.WriteString(fmt.Sprintf("- Supported kinds: %s\n", strings.Join(model.Kinds(), ", ")))
	b.WriteString("\n[NUMERICAL FEATURES]\n")
	for _, f := range info.NumericalFeatures {
		b.WriteString("- " + f + "\n")
	}
	b.WriteString("\n[CATEGORICAL FEATURES]\n")
	for _, f := range info.CategoricalFeatures {
		b.WriteString("- " + f + "\n")
	}
	if len(info.Factors) > 0 {
		b.WriteString("\n[GENERAL DELAY FACTORS]\n")
		for _, f := range info.Factors {
			b.WriteString("- " + f + "\n")
		}
	}
	return b.String()
}
