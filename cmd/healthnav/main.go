package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/evihealth/healthnav/internal/api"
	"github.com/evihealth/healthnav/internal/flow"
	"github.com/evihealth/healthnav/internal/genai"
	"github.com/evihealth/healthnav/internal/prompts"
	"github.com/evihealth/healthnav/internal/store"
	"github.com/evihealth/healthnav/internal/tools"
	"github.com/evihealth/healthnav/internal/util"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment configuration first so the debug flag can shape logging.
	config := loadEnvironmentConfig()
	initializeLogger(config.Debug)

	flags := parseCommandLineFlags(config)

	genaiOpts := buildGenAIOptions(flags)
	client, err := genai.NewClient(genaiOpts...)
	if err != nil {
		slog.Error("Failed to create completion client", "error", err)
		os.Exit(1)
	}

	executor := tools.NewExecutor(client)
	conversation := flow.NewConversationFlow(client, executor)

	if *flags.cli {
		if err := runCLI(conversation); err != nil {
			slog.Error("HealthNav CLI failed", "error", err)
			os.Exit(1)
		}
		return
	}

	slog.Info("Bootstrapping HealthNav HTTP API")
	server := api.NewServer(conversation, store.NewSessionStore(), buildAPIOptions(flags)...)
	if err := server.Run(); err != nil {
		slog.Error("HealthNav failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("HealthNav exited successfully")
}

// Config holds environment configuration.
type Config struct {
	OpenAIKey   string
	OpenAIModel string
	APIAddr     string
	CLI         bool
	Debug       bool
}

// Flags holds command line flag values.
type Flags struct {
	openaiKey *string
	model     *string
	apiAddr   *string
	cli       *bool
}

// initializeLogger sets up structured logging; debug enables verbose output.
func initializeLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel: os.Getenv("OPENAI_MODEL"),
		APIAddr:     os.Getenv("API_ADDR"),
		CLI:         util.ParseBoolEnv("HEALTHNAV_CLI", false),
		Debug:       util.ParseBoolEnv("HEALTHNAV_DEBUG", false),
	}

	slog.Debug("environment variables loaded",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"OPENAI_MODEL", config.OpenAIModel,
		"API_ADDR", config.APIAddr,
		"HEALTHNAV_CLI", config.CLI,
		"HEALTHNAV_DEBUG", config.Debug)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults.
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		openaiKey: flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		model:     flag.String("model", config.OpenAIModel, "chat model name (overrides $OPENAI_MODEL)"),
		apiAddr:   flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		cli:       flag.Bool("cli", config.CLI, "run the interactive CLI loop instead of the HTTP server (overrides $HEALTHNAV_CLI)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"openaiKeySet", *flags.openaiKey != "",
		"model", *flags.model,
		"apiAddr", *flags.apiAddr,
		"cli", *flags.cli)

	return flags
}

// buildGenAIOptions constructs completion client configuration options.
func buildGenAIOptions(flags Flags) []genai.Option {
	var opts []genai.Option
	if *flags.openaiKey != "" {
		opts = append(opts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.model != "" {
		opts = append(opts, genai.WithModel(*flags.model))
	}
	return opts
}

// buildAPIOptions constructs API server configuration options.
func buildAPIOptions(flags Flags) []api.Option {
	var opts []api.Option
	if *flags.apiAddr != "" {
		opts = append(opts, api.WithAddr(*flags.apiAddr))
	}
	return opts
}

// runCLI drives a single interactive session on stdin/stdout.
func runCLI(conversation *flow.ConversationFlow) error {
	sess := flow.NewSession(util.GenerateSessionID())
	ctx := context.Background()

	fmt.Println(prompts.Intro())
	fmt.Println("\nYou can continue asking questions now. Type 'exit' to stop.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nYou: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		switch strings.ToLower(input) {
		case "exit", "quit", "stop":
			fmt.Println("Goodbye! Stay healthy.")
			return nil
		}

		reply, err := conversation.ProcessTurn(ctx, sess, input)
		if err != nil {
			slog.Error("runCLI: turn processing failed", "session", sess.ID, "error", err)
			fmt.Println("\nAssistant: Something went wrong on my side. Please try again.")
			continue
		}
		fmt.Println("\nAssistant:", reply)
		if len(sess.Suggestions) > 0 {
			fmt.Println("\nSuggestions:")
			for _, suggestion := range sess.Suggestions {
				fmt.Println("  -", suggestion)
			}
		}
	}
	return scanner.Err()
}
