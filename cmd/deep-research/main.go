package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mikeboe/deep-research/pkg/bootstrap"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/logging"
	"github.com/mikeboe/deep-research/pkg/research"
)

const (
	modeReport = "report"
	modeAnswer = "answer"
)

var (
	query   string
	breadth int
	depth   int
	mode    string
	output  string
)

func main() {
	// It's okay if .env doesn't exist, as long as env vars are set
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "deep-research",
		Short: "A terminal-based deep research agent",
		Long: `deep-research explores a topic as a tree of web searches, extracting learnings
at each level and following up on them, then writes a markdown report or a short answer.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return run(ctx, cmd)
		},
	}

	rootCmd.Flags().StringVarP(&query, "query", "q", "", "What to research")
	rootCmd.Flags().IntVarP(&breadth, "breadth", "b", 4, "Search queries per level (recommended 2-10)")
	rootCmd.Flags().IntVarP(&depth, "depth", "d", 2, "Recursion levels (recommended 1-5)")
	rootCmd.Flags().StringVar(&mode, "mode", modeReport, "Output kind: report or answer")
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default report.md or answer.md)")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cobra.Command) error {
	cfg := config.Load()
	closer, err := logging.Setup(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer closer.Close()

	app, err := bootstrap.New(ctx, cfg, bootstrap.WithLogger(slog.Default()))
	if err != nil {
		return fmt.Errorf("error initializing research engine: %w", err)
	}
	defer app.Close()

	p := newPrompter(os.Stdin, os.Stdout)
	fmt.Fprintf(p.out, "Using model: %s\n", cfg.DefaultModel())

	flags := cmd.Flags()
	if !flags.Changed("query") {
		query = p.ask("What would you like to research?")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if !flags.Changed("breadth") {
		breadth = p.askInt("Enter research breadth (recommended 2-10, default 4):", 4)
	}
	if !flags.Changed("depth") {
		depth = p.askInt("Enter research depth (recommended 1-5, default 2):", 2)
	}
	if !flags.Changed("mode") {
		mode = parseMode(p.ask("Do you want to generate a long report or a specific answer? (report/answer, default report):"))
	}
	if mode != modeReport && mode != modeAnswer {
		return fmt.Errorf("invalid mode %q: must be %s or %s", mode, modeReport, modeAnswer)
	}

	combined := query
	if mode == modeReport {
		fmt.Fprintln(p.out, "Creating research plan...")
		questions, err := app.Assistant.GenerateFeedback(ctx, query, research.DefaultFeedbackQuestions)
		if err != nil {
			return err
		}
		if len(questions) > 0 {
			fmt.Fprintln(p.out, "\nTo better understand your research needs, please answer these follow-up questions:")
			answers := make([]string, len(questions))
			for i, q := range questions {
				answers[i] = p.ask(q)
			}
			combined = research.CombineFeedback(query, questions, answers)
		}
	}

	fmt.Fprintln(p.out, "\nStarting research...")
	res, err := app.Engine.Research(ctx, combined, breadth, depth, nil, nil,
		research.WithProgress(func(pr research.Progress) {
			slog.Debug("Research progress",
				"depth", pr.CurrentDepth,
				"completed", pr.CompletedQueries,
				"total", pr.TotalQueries,
				"query", pr.CurrentQuery)
		}))
	if err != nil {
		return fmt.Errorf("error running research: %w", err)
	}

	fmt.Fprintf(p.out, "\n\nLearnings:\n\n%s\n", strings.Join(res.Learnings, "\n"))
	fmt.Fprintf(p.out, "\n\nVisited URLs (%d):\n\n%s\n", len(res.VisitedURLs), strings.Join(res.VisitedURLs, "\n"))

	var text, label string
	if mode == modeReport {
		fmt.Fprintln(p.out, "Writing final report...")
		text, err = app.Assistant.WriteReport(ctx, combined, res.Learnings, res.VisitedURLs)
		label = "Report"
	} else {
		fmt.Fprintln(p.out, "Writing final answer...")
		text, err = app.Assistant.WriteAnswer(ctx, combined, res.Learnings)
		label = "Answer"
	}
	if err != nil {
		return err
	}

	path := output
	if path == "" {
		path = mode + ".md"
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Fprintf(p.out, "\n\nFinal %s:\n\n%s\n", label, text)
	fmt.Fprintf(p.out, "\n%s has been saved to %s\n", label, path)
	return nil
}
