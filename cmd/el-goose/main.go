package main

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/camberg23/el-goose/config"
	"github.com/camberg23/el-goose/internal/agent"
	"github.com/camberg23/el-goose/internal/api"
	"github.com/camberg23/el-goose/internal/credentials"
	"github.com/camberg23/el-goose/internal/elgoose"
	"github.com/camberg23/el-goose/internal/llm"
)

var (
	cfg    *config.Config
	logger zerolog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "el-goose [question]",
		Short: "Conversational gateway to the ElGoose setlist API",
		Long: `el-goose is a conversational gateway to the band Goose's entire
ecosystem: shows, setlists, songs, venues, jam charts, guest
appearances, albums, and more, served by the ElGoose.net API.

Ask questions like:
  el-goose "Which countries did Goose tour in 2023?"
  el-goose "When did Julian Lage appear with Goose?"
  el-goose "Show me the setlist from June 30, 2024 at Westville Music Bowl"
  el-goose "What are Goose's top 5 most-played tunes?"
  el-goose chat
  el-goose serve --port 8080`,
		Args: cobra.ArbitraryArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}

			level, _ := zerolog.ParseLevel(cfg.LogLevel)
			logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				Level(level).
				With().
				Timestamp().
				Logger()

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			question := strings.Join(args, " ")
			return runAsk(question)
		},
	}

	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(testCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long:  "Start an interactive chat session about Goose shows, setlists, and songs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat()
		},
	}
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return runAsk(question)
		},
	}
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		Long:  "Start the REST API server for programmatic access",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port > 0 {
				cfg.ServerPort = port
			}
			return runServer()
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default: 8080)")
	return cmd
}

func createAgent() *agent.Agent {
	router := llm.NewHybridRouter(
		cfg.OllamaURL,
		cfg.OllamaModel,
		cfg.AnthropicAPIKey,
		cfg.ClaudeModel,
		cfg.PreferLocal,
	)

	if router.LocalAvailable() {
		logger.Info().Str("model", cfg.OllamaModel).Msg("local Ollama available")
	}
	if cfg.AnthropicAPIKey != "" {
		logger.Info().Msg("Claude API available")
	}

	client := elgoose.NewClient(cfg.ElGooseAPIURL, logger)
	normalizer := elgoose.NewNormalizer(client, cfg.ArtistID, logger)

	return agent.NewAgent(router, normalizer, logger)
}

func runChat() error {
	ag := createAgent()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nGoodbye!")
		cancel()
		os.Exit(0)
	}()

	fmt.Println("el-goose - Conversational Goose Setlist Assistant")
	fmt.Println("==================================================")
	fmt.Println("Ask me about shows, setlists, songs, venues, jam charts,")
	fmt.Println("guest appearances, or albums.")
	fmt.Println()
	fmt.Println("Type 'exit' or 'quit' to end the session.")
	fmt.Println()

	var history []agent.Message
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("You: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return nil
		}

		if input == "clear" {
			history = nil
			fmt.Println("Conversation cleared.")
			continue
		}

		fmt.Println()
		fmt.Print("Thinking...")

		response, newHistory, err := ag.Chat(ctx, input, history)
		if err != nil {
			fmt.Printf("\rError: %v\n\n", err)
			continue
		}

		history = newHistory

		fmt.Print("\r")
		fmt.Printf("Assistant: %s\n\n", response)
	}
}

func runAsk(question string) error {
	ag := createAgent()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	response, _, err := ag.Chat(ctx, question, nil)
	if err != nil {
		return err
	}

	fmt.Println(response)
	return nil
}

func runServer() error {
	ag := createAgent()
	server := api.NewServer(ag, cfg.ServerPort, logger, cfg)

	return server.Start()
}

func testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test ElGoose API connectivity",
		Long:  "Fetch the five most recent shows to verify the upstream API is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest()
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage credentials stored in OS keychain",
		Long: `Manage API credentials stored securely in your OS keychain.

Credentials are stored in:
  - macOS: Keychain Access
  - Windows: Credential Manager
  - Linux: Secret Service (GNOME Keyring)

Examples:
  el-goose config setup          # Interactive setup
  el-goose config show           # Show configured credentials
  el-goose config clear          # Remove all stored credentials`,
	}

	cmd.AddCommand(configSetupCmd())
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configClearCmd())

	return cmd
}

func configSetupCmd() *cobra.Command {
	var anthropicKey string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Configure API credentials",
		Long:  "Interactively configure and store API credentials in OS keychain",
		RunE: func(cmd *cobra.Command, args []string) error {
			if anthropicKey == "" {
				fmt.Print("Anthropic API Key (press Enter to skip): ")
				key, _ := readPassword()
				anthropicKey = strings.TrimSpace(key)
			}

			if err := credentials.Setup(anthropicKey); err != nil {
				return fmt.Errorf("failed to store credentials: %w", err)
			}

			fmt.Println("\nCredentials stored securely in OS keychain.")
			fmt.Println("You can now run el-goose without setting environment variables.")
			return nil
		},
	}

	cmd.Flags().StringVar(&anthropicKey, "anthropic-key", "", "Anthropic API key")

	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show configured credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			configured := credentials.ListConfigured()

			fmt.Println("Credential Status (stored in OS keychain):")
			fmt.Println("==========================================")

			status := func(ok bool) string {
				if ok {
					return "configured"
				}
				return "not set"
			}

			fmt.Printf("  Anthropic API Key: %s\n", status(configured[credentials.KeyAnthropic]))

			fmt.Println("\nNote: Environment variables override keychain values.")
			return nil
		},
	}
}

func configClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear all stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print("Are you sure you want to clear all stored credentials? [y/N]: ")
			reader := bufio.NewReader(os.Stdin)
			response, _ := reader.ReadString('\n')
			response = strings.TrimSpace(strings.ToLower(response))

			if response != "y" && response != "yes" {
				fmt.Println("Cancelled.")
				return nil
			}

			if err := credentials.ClearAll(); err != nil {
				fmt.Printf("Warning: some credentials may not have been cleared: %v\n", err)
			}

			fmt.Println("All credentials cleared from keychain.")
			return nil
		},
	}
}

func readPassword() (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Println()
		bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		return string(bytes), err
	}
	reader := bufio.NewReader(os.Stdin)
	return reader.ReadString('\n')
}

func runTest() error {
	fmt.Println("Testing ElGoose API connectivity...")
	fmt.Printf("  API URL: %s\n", cfg.ElGooseAPIURL)

	client := elgoose.NewClient(cfg.ElGooseAPIURL, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	params := url.Values{}
	params.Set("order_by", "showdate")
	params.Set("direction", "desc")
	params.Set("limit", "5")

	env := client.Fetch(ctx, "shows", nil, "", "", "json", params)
	if env.Failed() {
		fmt.Printf("  FAILED: %s\n", env.ErrorMessage)
		if env.RawText != "" {
			fmt.Printf("  Body snippet: %s\n", env.RawText)
		}
		return fmt.Errorf("upstream returned error %d", env.Error)
	}

	fmt.Printf("  OK - Found %d shows\n\n", len(env.Data))

	if len(env.Data) > 0 {
		fmt.Println("Most recent shows:")
		for i, show := range env.Data {
			if i >= 5 {
				break
			}
			fmt.Printf("  - %s at %s, %s\n",
				show.Str("showdate"), show.Str("venuename"), show.Str("city"))
		}
	}

	return nil
}
