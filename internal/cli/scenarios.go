package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/user/pagecheck-service/internal/scenario"
)

func newScenariosCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the scenarios in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := scenario.NewCatalog(a.cfg.ScenarioDir)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderScenarios(catalog.All()))
			return nil
		},
	}
}

func renderScenarios(all []*scenario.Scenario) string {
	nameStyle := lipgloss.NewStyle().Bold(true).Width(18)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("246"))

	var s string
	for _, sc := range all {
		line := nameStyle.Render(sc.Name) + fmt.Sprintf("%2d steps", len(sc.Steps))
		if sc.Description != "" {
			line += "  " + dimStyle.Render(sc.Description)
		}
		s += line + "\n"
	}
	return s
}
