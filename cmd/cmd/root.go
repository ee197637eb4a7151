/*
Copyright © 2025 Your Name

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"readingrecs/internal/config"
	"readingrecs/internal/llm"
	"readingrecs/internal/logger"
	"readingrecs/internal/pipeline"
	"readingrecs/internal/profile"
	"readingrecs/internal/store"
)

var (
	cfgFile string
	debug   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "readingrecs",
	Short: "Personal reading recommendations from your RSS feeds",
	Long: `readingrecs fetches your RSS feeds, filters new articles against a
learned preference profile, scores the best candidates with Gemini,
and emails you a short digest of what is actually worth reading.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./readingrecs.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newProfileCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Load .env file if it exists (for local development)
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	if _, err := config.Load(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if debug || config.Get().App.Debug {
		logger.SetDebug()
	}
}

func newRunCmd() *cobra.Command {
	var dryRun bool
	var model string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full recommendation pipeline and email the digest",
		Long: `Fetch feeds, enrich candidates with popularity signals, filter by
similarity to your favorites, score with Gemini, and email the digest.

Examples:
  # Full run
  readingrecs run

  # Score everything but skip the email
  readingrecs run --dry-run`,
		Run: func(cmd *cobra.Command, args []string) {
			runPipeline(dryRun, model)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "render the digest without sending email")
	cmd.Flags().StringVar(&model, "model", "", "override the Gemini scoring model")

	return cmd
}

func runPipeline(dryRun bool, model string) {
	cfg := config.Get()

	st, err := store.NewStore(cfg.App.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	client, err := llm.NewClient(model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create LLM client: %v\n", err)
		os.Exit(1)
	}

	p := pipeline.New(cfg, st, client, dryRun)
	html, err := p.Run(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Pipeline failed: %v\n", err)
		os.Exit(1)
	}

	if dryRun {
		fmt.Println(html)
	}
}

var (
	showTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	showScoreStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	showMetaStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	showPickedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the results of the most recent run",
		Run: func(cmd *cobra.Command, args []string) {
			showLatestRun()
		},
	}
}

func showLatestRun() {
	cfg := config.Get()

	st, err := store.NewStore(cfg.App.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	rows, err := st.LatestRun()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load latest run: %v\n", err)
		os.Exit(1)
	}
	if len(rows) == 0 {
		fmt.Println("No runs recorded yet. Try 'readingrecs run' first.")
		return
	}

	fmt.Println(showTitleStyle.Render("Latest run: " + rows[0].RunDate))
	fmt.Println()
	for _, row := range rows {
		marker := "  "
		if row.Recommended {
			marker = showPickedStyle.Render("★ ")
		}
		fmt.Printf("%s%s %s\n", marker,
			showScoreStyle.Render(fmt.Sprintf("[%4.1f]", row.LLMScore)),
			showTitleStyle.Render(row.Title))
		fmt.Printf("     %s\n", showMetaStyle.Render(
			fmt.Sprintf("%s | similarity %.3f | %s", row.Source, row.EmbeddingScore, row.URL)))
		if row.Reason != "" {
			fmt.Printf("     %s\n", row.Reason)
		}
	}
}

func newProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Refresh and inspect the preference profile",
		Long: `Parse the favorites document, recompute embeddings if the content
changed, and report the number of profile entries.`,
		Run: func(cmd *cobra.Command, args []string) {
			refreshProfile()
		},
	}
}

func refreshProfile() {
	cfg := config.Get()

	st, err := store.NewStore(cfg.App.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	client, err := llm.NewClient("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create LLM client: %v\n", err)
		os.Exit(1)
	}

	profileStore := profile.NewStore(cfg.App.FavoritesPath, client, st)
	vectors, err := profileStore.LoadProfile(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load profile: %v\n", err)
		os.Exit(1)
	}
	if len(vectors) == 0 {
		fmt.Printf("No usable entries in %s. Add favorites under '## ' headings.\n", cfg.App.FavoritesPath)
		return
	}
	fmt.Printf("Profile ready: %d entries embedded from %s\n", len(vectors), cfg.App.FavoritesPath)
}
