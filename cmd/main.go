package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pdf-qa/internal/config"
	"pdf-qa/internal/embedding"
	"pdf-qa/internal/iam"
	"pdf-qa/internal/llmservice"
	"pdf-qa/internal/models"
	"pdf-qa/internal/server"
	"pdf-qa/internal/session"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	cfgPath := flag.String("config", configFilePath, "Path to the yaml config file")
	filePath := flag.String("file", "", "Path to the PDF document")
	query := flag.String("query", "", "Question to be answered; omit for an interactive prompt")
	debug := flag.Bool("debug", false, "Show the first extracted chunks")
	serve := flag.Bool("serve", false, "Start the web UI instead of the command line")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	tokens := iam.NewTokenSource(ctx, nil, cfg.IAM.URL, cfg.IAM.APIKey)
	generator := llmservice.NewClient(cfg.Watsonx, tokens, nil)
	sess := session.New(cfg, embedder, generator)

	if *serve {
		if err := server.New(cfg, sess).ListenAndServe(ctx); err != nil {
			log.Fatal().Err(err).Msg("Server stopped")
		}
		return
	}

	if *filePath == "" {
		log.Fatal().Msg("Please provide a PDF using the -file flag, or start the web UI with -serve")
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading document")
	}

	log.Info().Msg("Extracting text from PDF...")
	_, err = sess.Load(ctx, *filePath, data)
	var warn *models.EmptyDocumentWarning
	switch {
	case errors.As(err, &warn):
		log.Warn().Str("document", warn.Name).Msg("No extractable text, answers will have no context")
	case err != nil:
		log.Fatal().Err(err).Msg("Error processing document")
	}

	if _, err := tokens.Token(); err != nil {
		fmt.Fprintln(os.Stderr, iam.Describe(err))
		log.Fatal().Msg("Token fetch failed")
	}

	if *debug {
		printChunks(sess)
	}

	if *query != "" {
		if !ask(ctx, sess, *query) {
			os.Exit(1)
		}
		return
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("Ask a question based on the PDF: ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		question := scanner.Text()
		if strings.TrimSpace(question) == "" {
			continue
		}
		ask(ctx, sess, question)
		if ctx.Err() != nil {
			return
		}
	}
}

func ask(ctx context.Context, sess *session.Session, question string) bool {
	log.Info().Msg("Getting your answer from Watsonx...")
	answer, err := sess.Ask(ctx, question)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Something went wrong.")
		fmt.Fprintln(os.Stderr, err)
		return false
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", question)

	log.Info().Msg("Answer: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", answer.Content)
	return true
}

func printChunks(sess *session.Session) {
	for _, c := range sess.Preview() {
		fmt.Printf("Chunk %d:\n```\n%s\n```\n\n", c.Index+1, c.Content)
	}
}
