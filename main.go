package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	inputFile        string
	apiKey           string
	provider         string
	resultsFile      string
	limit            int
	maxRuntime       time.Duration
	retryFailed      bool
	discoverPages    bool
	systemPromptPath string
	userPromptPath   string
	schemaPath       string
	debugMode        bool
)

var rootCmd = &cobra.Command{
	Use:   "pricing-extractor [input-file]",
	Short: "Batch pricing extraction from product websites using AI",
	Long: `Reads a CSV of product URLs, fetches each pricing page, and extracts
structured pricing plans with a completion API. Progress is saved after every
item, so an interrupted run picks up where it left off.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		// Get input file path
		if len(args) > 0 {
			inputFile = args[0]
		} else if inputFile == "" {
			inputFile = "items.csv"
		}

		if debugMode {
			SetDebugMode(true)
		}

		if err := ensureConfigExists(); err != nil {
			log.Fatalf("Failed to create config: %v", err)
		}

		// Build config overrides
		overrides := &ConfigOverrides{}
		if systemPromptPath != "" {
			overrides.SystemPromptPath = &systemPromptPath
		}
		if userPromptPath != "" {
			overrides.UserPromptPath = &userPromptPath
		}
		if schemaPath != "" {
			overrides.SchemaPath = &schemaPath
		}

		config, err := NewConfig(overrides)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		if provider == "" {
			provider = config.Settings.Extraction.Provider
		}
		if cmd.Flags().Changed("discover") {
			config.Settings.Discovery.Enabled = discoverPages
		}

		// Get API key before any network work
		if apiKey == "" {
			switch provider {
			case "anthropic":
				apiKey = os.Getenv("ANTHROPIC_API_KEY")
			default:
				apiKey = os.Getenv("OPENROUTER_API_KEY")
			}
		}
		if apiKey == "" {
			log.Fatal("API key required: use --api-key flag or OPENROUTER_API_KEY / ANTHROPIC_API_KEY environment variable")
		}

		if resultsFile == "" {
			resultsFile = config.Settings.ResultsFile
		}

		// Pipeline construction validates the provider; the input may live
		// behind a URL, so all configuration checks come first
		pipeline, err := NewPipeline(provider, apiKey, resultsFile, config)
		if err != nil {
			log.Fatalf("Failed to create pipeline: %v", err)
		}
		pipeline.SetLimit(limit)
		pipeline.SetRetryFailed(retryFailed)

		items, err := LoadItems(inputFile)
		if err != nil {
			log.Fatalf("Failed to load items: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if maxRuntime > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, maxRuntime)
			defer cancel()
		}

		summary, err := pipeline.Run(ctx, items)
		if err != nil {
			log.Fatalf("Processing failed: %v", err)
		}

		pipeline.PrintSummary(summary)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recorded extraction outcomes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		path := resultsFile
		if path == "" {
			if err := ensureConfigExists(); err != nil {
				log.Fatalf("Failed to create config: %v", err)
			}
			config, err := NewConfig(nil)
			if err != nil {
				log.Fatalf("Failed to load config: %v", err)
			}
			path = config.Settings.ResultsFile
		}

		store := NewStore(path)
		if err := store.Load(); err != nil {
			log.Fatalf("Failed to load results: %v", err)
		}

		success, failed, skipped := store.Counts()
		fmt.Printf("Results file: %s\n", path)
		fmt.Printf("  Recorded: %d\n", store.Len())
		fmt.Printf("  Success:  %d\n", success)
		fmt.Printf("  Failed:   %d\n", failed)
		fmt.Printf("  Skipped:  %d\n", skipped)

		failedItems := store.Results().FailedItems()
		if len(failedItems) > 0 {
			fmt.Println("Failed items:")
			for _, r := range failedItems {
				fmt.Printf("  ✗ %s (%s): %s\n", r.URL, r.ErrorKind, r.ErrorMessage)
			}
		}
	},
}

func init() {
	rootCmd.Flags().StringVar(&inputFile, "input", "", "Path or URL of the input CSV (default items.csv)")
	rootCmd.Flags().StringVar(&apiKey, "api-key", "", "Completion API key")
	rootCmd.Flags().StringVar(&provider, "provider", "", "Completion provider: openrouter or anthropic (default from settings)")
	rootCmd.Flags().StringVar(&resultsFile, "results", "", "Path to the results file (default from settings)")
	rootCmd.Flags().IntVar(&limit, "limit", 0, "Process at most N new items this run")
	rootCmd.Flags().DurationVar(&maxRuntime, "max-runtime", 0, "Stop after this duration, progress is kept")
	rootCmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "Clear failed items so they are retried")
	rootCmd.Flags().BoolVar(&discoverPages, "discover", false, "Probe common pricing paths before fetching")
	rootCmd.Flags().StringVar(&systemPromptPath, "system-prompt", "", "Path to custom extraction system prompt file")
	rootCmd.Flags().StringVar(&userPromptPath, "prompt", "", "Path to custom extraction user prompt file")
	rootCmd.Flags().StringVar(&schemaPath, "schema", "", "Path to custom output schema file")
	rootCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	statusCmd.Flags().StringVar(&resultsFile, "results", "", "Path to the results file (default from settings)")

	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
