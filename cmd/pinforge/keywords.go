package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/PinForge/internal/database"
	"github.com/TobiSchelling/PinForge/internal/keywords"
	"github.com/TobiSchelling/PinForge/internal/pipeline"
)

var keywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "Track Pinterest keyword popularity",
}

var keywordsTrackCmd = &cobra.Command{
	Use:   "track [keyword]",
	Short: "Start tracking a keyword",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		k, err := a.keywords.Track(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Tracking %q [%s]: popularity %d, %d pins, %d saves\n", k.Keyword, k.ID, k.Popularity, k.Volume, k.Saves)
		return nil
	},
}

var keywordsListCmd = &cobra.Command{
	Use:   "list [filter]",
	Short: "List tracked keywords",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		filter := ""
		if len(args) > 0 {
			filter = keywords.Normalize(args[0])
		}
		items, err := db.ListKeywords(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No keywords tracked. Add one with: pinforge keywords track")
			return nil
		}
		printKeywords(items)
		return nil
	},
}

var keywordsRefreshCmd = &cobra.Command{
	Use:   "refresh [id]",
	Short: "Refresh one keyword, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 1 {
			k, err := a.keywords.UpdateByID(ctx, args[0])
			if err != nil {
				return err
			}
			printKeywords([]database.Keyword{*k})
			return nil
		}

		step := pipeline.New(a.dispatcher, a.db, logger).RefreshKeywords(ctx, a.keywords)
		if step.Err != nil {
			return step.Err
		}
		fmt.Println(step.Summary)
		return nil
	},
}

var keywordsUntrackCmd = &cobra.Command{
	Use:   "untrack [id]",
	Short: "Stop tracking a keyword",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DeleteKeyword(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Stopped tracking %s\n", args[0])
		return nil
	},
}

var researchCategory string

var keywordsResearchCmd = &cobra.Command{
	Use:   "research [seed]",
	Short: "Find trending keywords containing a seed term",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		suggestions, err := a.keywords.Research(ctx, args[0], researchCategory)
		if err != nil {
			return err
		}
		if len(suggestions) == 0 {
			fmt.Printf("No trending keywords contain %q\n", args[0])
			return nil
		}

		rows := make([][]string, 0, len(suggestions))
		for _, s := range suggestions {
			rows = append(rows, []string{
				s.Keyword,
				strconv.Itoa(s.Popularity),
				strconv.Itoa(s.Volume),
				strconv.Itoa(s.Saves),
				strconv.Itoa(s.Engagement),
			})
		}
		fmt.Println(renderTable(
			[]string{"Keyword", "Popularity", "Pins", "Saves", "Engagement"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
		))
		return nil
	},
}

func init() {
	keywordsResearchCmd.Flags().StringVar(&researchCategory, "category", "", "Pinterest trend category")

	keywordsCmd.AddCommand(keywordsTrackCmd)
	keywordsCmd.AddCommand(keywordsListCmd)
	keywordsCmd.AddCommand(keywordsRefreshCmd)
	keywordsCmd.AddCommand(keywordsUntrackCmd)
	keywordsCmd.AddCommand(keywordsResearchCmd)
}

func printKeywords(items []database.Keyword) {
	rows := make([][]string, 0, len(items))
	for _, k := range items {
		pos := "-"
		if k.Position > 0 {
			pos = strconv.Itoa(k.Position)
		}
		change := ""
		if k.Change != 0 {
			change = fmt.Sprintf("%+d", k.Change)
		}
		rows = append(rows, []string{
			k.ID,
			k.Keyword,
			strconv.Itoa(k.Popularity),
			strconv.Itoa(k.Volume),
			strconv.Itoa(k.Saves),
			pos,
			change,
			k.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	fmt.Println(renderTable(
		[]string{"ID", "Keyword", "Popularity", "Pins", "Saves", "Position", "Change", "Updated"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))
}

// --- pins command ---

var pinsCmd = &cobra.Command{
	Use:   "pins",
	Short: "Inspect Pinterest pins",
}

var topPinsLimit int

var pinsTopCmd = &cobra.Command{
	Use:   "top [query]",
	Short: "Show the most engaging pins for a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		pins, err := a.keywords.TopPins(ctx, args[0], topPinsLimit)
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(pins))
		for i, p := range pins {
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				truncate(p.Title, 40),
				strconv.Itoa(p.Saves),
				strconv.Itoa(p.Comments),
				strconv.Itoa(p.Reactions),
				truncate(p.Link, 50),
			})
		}
		fmt.Println(renderTable(
			[]string{"#", "Title", "Saves", "Comments", "Reactions", "Link"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignLeft},
		))
		return nil
	},
}

func init() {
	pinsTopCmd.Flags().IntVarP(&topPinsLimit, "limit", "l", 10, "Number of pins")
	pinsCmd.AddCommand(pinsTopCmd)
}
