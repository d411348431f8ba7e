package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/PinForge/internal/article"
	"github.com/TobiSchelling/PinForge/internal/database"
	"github.com/TobiSchelling/PinForge/internal/dispatch"
	"github.com/TobiSchelling/PinForge/internal/pipeline"
)

// requestFlags are shared by generate and bulk.
type requestFlags struct {
	sections    []string
	model       string
	imagePrompt string
	textPrompt  string
	keywords    []string
	images      int
	size        string
	reference   string
	plagiarism  bool
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.sections, "section", "s", nil, "Section title (repeatable)")
	cmd.Flags().StringVarP(&f.model, "model", "m", string(article.ModelFluxDev), "Image model: ideogram, flux-dev, midjourney, imagefx")
	cmd.Flags().StringVar(&f.imagePrompt, "image-prompt", "", "Image prompt (defaults to one built from the title)")
	cmd.Flags().StringVar(&f.textPrompt, "text-prompt", "", "Extra instructions for the text")
	cmd.Flags().StringSliceVarP(&f.keywords, "keyword", "k", nil, "SEO keyword (repeatable or comma separated)")
	cmd.Flags().IntVarP(&f.images, "images", "n", 1, "Number of images")
	cmd.Flags().StringVar(&f.size, "size", string(article.Size2x3), "Image aspect ratio: 3:4, 2:3, 3:2")
	cmd.Flags().StringVar(&f.reference, "reference", "", "Reference image file")
	cmd.Flags().BoolVar(&f.plagiarism, "check-plagiarism", false, "Request a plagiarism check")
}

func (f *requestFlags) request(title string) (article.Request, error) {
	req := article.Request{
		Title:           title,
		Model:           article.Model(f.model),
		ImagePrompt:     f.imagePrompt,
		TextPrompt:      f.textPrompt,
		Keywords:        f.keywords,
		CheckPlagiarism: f.plagiarism,
		ImageCount:      f.images,
		ImageSize:       article.ImageSize(f.size),
	}
	for _, s := range f.sections {
		req.Sections = append(req.Sections, article.SectionInput{Title: s})
	}
	if f.reference != "" {
		data, err := os.ReadFile(f.reference)
		if err != nil {
			return req, fmt.Errorf("reading reference image: %w", err)
		}
		req.ReferenceImage = data
	}
	return req, nil
}

// --- generate command ---

var genFlags requestFlags

var generateCmd = &cobra.Command{
	Use:   "generate [title]",
	Short: "Generate one article with images",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := genFlags.request(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Printf("Generating %q (%d sections, %d images)...\n", req.Title, len(req.Sections), req.ImageCount)
		res, err := a.dispatcher.Dispatch(ctx, req, cfg.ProviderConfig())
		var perr *article.PersistenceError
		if errors.As(err, &perr) && res != nil {
			printArticle(res.Article)
			return fmt.Errorf("article generated but not saved: %w", err)
		}
		if err != nil {
			return err
		}

		printArticle(res.Article)
		if res.Partial != nil {
			fmt.Printf("\nWarning: %v (failed slots %v)\n", res.Partial, res.Partial.Slots())
			for _, f := range res.Partial.Failed {
				fmt.Printf("  slot %d: %s\n", f.Slot, f.Reason)
			}
		}
		return nil
	},
}

func init() {
	genFlags.register(generateCmd)
}

// --- bulk command ---

var (
	bulkFlags requestFlags
	bulkFile  string
)

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Generate one article per title, read from a file or stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = os.Stdin
		if bulkFile != "" && bulkFile != "-" {
			f, err := os.Open(bulkFile)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		data, err := io.ReadAll(bufio.NewReader(in))
		if err != nil {
			return fmt.Errorf("reading titles: %w", err)
		}
		titles := pipeline.ParseTitles(string(data))
		if len(titles) == 0 {
			return fmt.Errorf("no titles given")
		}

		tmpl, err := bulkFlags.request("")
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		// The first interrupt discards the article in progress and stops the run.
		token := dispatch.NewToken()
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt)
		defer signal.Stop(sigCh)
		go func() {
			if _, ok := <-sigCh; ok {
				fmt.Println("\nCancelling after the current article...")
				token.Cancel()
			}
		}()

		fmt.Printf("Generating %d articles...\n", len(titles))
		result := pipeline.New(a.dispatcher, a.db, logger).Bulk(ctx, titles, tmpl, cfg.ProviderConfig(), token)

		for i, step := range result.Steps {
			fmt.Printf("\n[%d/%d] %s\n", i+1, len(titles), step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			}
			if step.Summary != "" {
				fmt.Printf("  %s\n", step.Summary)
			}
			if step.ArticleID != "" {
				fmt.Printf("  id: %s\n", step.ArticleID)
			}
		}
		fmt.Printf("\nBulk run complete: %d succeeded, %d failed, %d skipped\n",
			result.Succeeded, result.Failed, len(titles)-len(result.Steps))
		return nil
	},
}

func init() {
	bulkFlags.register(bulkCmd)
	bulkCmd.Flags().StringVarP(&bulkFile, "file", "f", "", "File with one title per line (default stdin)")
}

// --- regenerate command ---

var regeneratePrompt string

var regenerateCmd = &cobra.Command{
	Use:   "regenerate [article-id] [index]",
	Short: "Regenerate one image of an article",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[1])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		art, err := a.dispatcher.RegenerateImage(ctx, args[0], index, regeneratePrompt, cfg.ProviderConfig())
		if err != nil {
			return err
		}
		fmt.Printf("Image %d: %s\n", index, art.Images[index])
		return nil
	},
}

func init() {
	regenerateCmd.Flags().StringVarP(&regeneratePrompt, "prompt", "p", "", "Custom prompt for the new image")
}

// --- articles command ---

var articlesCmd = &cobra.Command{
	Use:   "articles",
	Short: "Manage generated articles",
}

var (
	listStatus string
	listLimit  int
)

var articlesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List generated articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := database.ArticleFilter{Limit: listLimit}
		if listStatus != "" {
			st, err := article.ParseStatus(listStatus)
			if err != nil {
				return err
			}
			f.Status = st
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		items, err := db.ListArticles(cmd.Context(), f)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No articles yet. Create one with: pinforge generate")
			return nil
		}

		rows := make([][]string, 0, len(items))
		for _, it := range items {
			wp := ""
			if it.WordPressDraft {
				wp = "yes"
			}
			rows = append(rows, []string{
				it.ID,
				truncate(it.Title, 48),
				string(it.Status),
				fmt.Sprintf("%d/%d", len(it.Images), it.Options.ImageCount),
				wp,
				it.CreatedAt.Local().Format("2006-01-02 15:04"),
			})
		}
		fmt.Println(renderTable(
			[]string{"ID", "Title", "Status", "Images", "WP", "Created"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
		))
		return nil
	},
}

var articlesShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print an article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		a, err := db.GetArticle(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if a == nil {
			return fmt.Errorf("article %s not found", args[0])
		}
		printArticle(a)
		for _, s := range a.Sections {
			fmt.Printf("\n## %s\n\n%s\n", s.Title, s.Content)
		}
		return nil
	},
}

var articlesDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete an article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DeleteArticle(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted article %s\n", args[0])
		return nil
	},
}

var articlesMarkDraftCmd = &cobra.Command{
	Use:   "mark-draft [id] [post-id] [url]",
	Short: "Record the WordPress draft created for an article",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		url := ""
		if len(args) > 2 {
			url = args[2]
		}
		if _, err := a.dispatcher.MarkWordPressDraft(ctx, args[0], args[1], url); err != nil {
			return err
		}
		fmt.Printf("Article %s linked to WordPress post %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	articlesListCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status: draft, processing, completed, rejected")
	articlesListCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum number of articles")

	articlesCmd.AddCommand(articlesListCmd)
	articlesCmd.AddCommand(articlesShowCmd)
	articlesCmd.AddCommand(articlesDeleteCmd)
	articlesCmd.AddCommand(articlesMarkDraftCmd)
}

func printArticle(a *article.Article) {
	if a == nil {
		return
	}
	fmt.Printf("\n%s\n", a.Title)
	fmt.Println(strings.Repeat("=", len([]rune(a.Title))))
	if a.ID != "" {
		fmt.Printf("ID:       %s\n", a.ID)
	}
	fmt.Printf("Status:   %s\n", a.Status)
	fmt.Printf("Model:    %s (%s)\n", a.Options.Model, a.Options.ImageSize)
	if len(a.Options.Keywords) > 0 {
		fmt.Printf("Keywords: %s\n", strings.Join(a.Options.Keywords, ", "))
	}
	fmt.Printf("Sections: %d\n", len(a.Sections))
	fmt.Printf("Images:   %d of %d\n", len(a.Images), a.Options.ImageCount)
	for i, img := range a.Images {
		fmt.Printf("  [%d] %s\n", i, img)
	}
	if a.WordPressDraft {
		fmt.Printf("WordPress: post %s %s\n", a.WordPressPostID, a.WordPressURL)
	}
}
