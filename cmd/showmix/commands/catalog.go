package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// Listing styles, matching the house green-on-dark theme.
var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
)

var speakersCmd = &cobra.Command{
	Use:   "speakers",
	Short: "List configured speaker profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := openCatalog()
		if err != nil {
			return err
		}
		profiles := cat.Speakers.ListActive()
		if outputJSON {
			return outputResult(profiles)
		}
		for _, p := range profiles {
			line := labelStyle.Render(p.Name) + dimStyle.Render(" ("+p.Language+", voice "+p.VoiceID+")")
			if len(p.RoleAliases) > 0 {
				line += "  roles: " + strings.Join(p.RoleAliases, ", ")
			}
			fmt.Println(line)
		}
		return nil
	},
}

var jinglesCmd = &cobra.Command{
	Use:   "jingles",
	Short: "List the jingle catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := openCatalog()
		if err != nil {
			return err
		}
		assets := cat.Jingles.List()
		if outputJSON {
			return outputResult(assets)
		}
		for _, a := range assets {
			line := labelStyle.Render(a.ID) +
				fmt.Sprintf("  %s  q=%.2f", a.Duration, a.QualityScore)
			if len(a.Categories) > 0 {
				line += dimStyle.Render("  [" + strings.Join(a.Categories, ", ") + "]")
			}
			fmt.Println(line)
		}
		return nil
	},
}

var tiersCmd = &cobra.Command{
	Use:   "tiers",
	Short: "List the quality tier catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := openCatalog()
		if err != nil {
			return err
		}
		tiers := cat.Tiers.List()
		if outputJSON {
			return outputResult(tiers)
		}
		for _, t := range tiers {
			fmt.Println(labelStyle.Render(string(t.ID)) +
				fmt.Sprintf("  model=%s  latency~%s  cost=%.1fx", t.ModelID, t.ApproxLatency, t.CostMultiplier) +
				dimStyle.Render(fmt.Sprintf("  boost=%t style=%t", t.Features.SpeakerBoost, t.Features.StyleControl)))
		}
		return nil
	},
}
