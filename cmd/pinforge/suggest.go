package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/PinForge/internal/settings"
	"github.com/TobiSchelling/PinForge/internal/suggest"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Ask the text model for ideas",
}

var (
	suggestFeeds bool
	suggestURL   string
)

var suggestTitlesCmd = &cobra.Command{
	Use:   "titles [topic]",
	Short: "Suggest article titles for a topic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSuggest(cmd, func(s *suggest.Suggester) ([]string, error) {
			return s.Titles(cmd.Context(), args[0], suggest.Options{UseFeeds: suggestFeeds, ReferenceURL: suggestURL})
		})
	},
}

var suggestKeywordsCmd = &cobra.Command{
	Use:   "keywords [keyword]",
	Short: "Suggest related keywords",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSuggest(cmd, func(s *suggest.Suggester) ([]string, error) {
			return s.Keywords(cmd.Context(), args[0])
		})
	},
}

var suggestInterests []string

var suggestPinsCmd = &cobra.Command{
	Use:   "pins [title]",
	Short: "Suggest pin descriptions for an article title",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSuggest(cmd, func(s *suggest.Suggester) ([]string, error) {
			return s.PinDescriptions(cmd.Context(), args[0], suggestInterests)
		})
	},
}

func runSuggest(cmd *cobra.Command, ask func(*suggest.Suggester) ([]string, error)) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.newSuggester()
	if err != nil {
		return err
	}
	out, err := ask(s)
	if err != nil {
		return err
	}
	for i, line := range out {
		fmt.Printf("%d. %s\n", i+1, line)
	}
	return nil
}

func init() {
	suggestTitlesCmd.Flags().BoolVar(&suggestFeeds, "feeds", false, "Use recent headlines from the configured feeds")
	suggestTitlesCmd.Flags().StringVar(&suggestURL, "url", "", "Reference page to draw ideas from")
	suggestPinsCmd.Flags().StringSliceVar(&suggestInterests, "interest", nil, "Audience interest (repeatable)")

	suggestCmd.AddCommand(suggestTitlesCmd)
	suggestCmd.AddCommand(suggestKeywordsCmd)
	suggestCmd.AddCommand(suggestPinsCmd)
}

// --- settings command ---

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect provider API keys",
}

var settingsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the format of every configured API key",
	Run: func(cmd *cobra.Command, args []string) {
		keys := cfg.ProviderConfig()
		problems := keys.Check()

		rows := make([][]string, 0, len(settings.AllProviders()))
		for _, p := range settings.AllProviders() {
			state := "not configured"
			switch {
			case problems[p] != nil:
				state = problems[p].Error()
			case keys.Configured(p):
				state = "ok"
			}
			rows = append(rows, []string{p.DisplayName(), state})
		}
		fmt.Println(renderTable([]string{"Provider", "Key"}, rows, nil))
	},
}

func init() {
	settingsCmd.AddCommand(settingsCheckCmd)
}
