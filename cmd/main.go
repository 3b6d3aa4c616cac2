package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/sawdust/pkg/answer"
	cfgPkg "github.com/xhad/sawdust/pkg/config"
	"github.com/xhad/sawdust/pkg/ingest"
	"github.com/xhad/sawdust/pkg/intent"
	"github.com/xhad/sawdust/pkg/llm"
	"github.com/xhad/sawdust/pkg/markers"
	"github.com/xhad/sawdust/pkg/pipeline"
	"github.com/xhad/sawdust/pkg/processor"
	"github.com/xhad/sawdust/pkg/products"
	"github.com/xhad/sawdust/pkg/rewrite"
	"github.com/xhad/sawdust/pkg/search"
	"github.com/xhad/sawdust/pkg/store"
	"github.com/xhad/sawdust/server"
)

type Flags struct {
	ConfigPath string
	Serve      bool
	Ingest     string
	Partition  string
	SourceURL  string
}

func main() {
	flags, config := parseFlags()

	if err := run(flags, config); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() (Flags, *cfgPkg.Config) {
	godotenv.Load()

	var flags Flags
	var dbURL, model, strategy string
	var port, topK, timeout int

	flag.StringVar(&flags.ConfigPath, "config", "", "Path to config file")
	flag.BoolVar(&flags.Serve, "serve", false, "Run the HTTP server")
	flag.StringVar(&flags.Ingest, "ingest", "", "Transcript file to ingest")
	flag.StringVar(&flags.Partition, "partition", "", "Corpus partition for ingestion or chat")
	flag.StringVar(&flags.SourceURL, "source-url", "", "Video URL for the ingested transcript")
	flag.StringVar(&dbURL, "db-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	flag.StringVar(&model, "model", "", "LLM model to use")
	flag.StringVar(&strategy, "strategy", "", "Retrieval strategy (store or cosine)")
	flag.IntVar(&port, "port", 0, "HTTP server port")
	flag.IntVar(&topK, "top-k", 0, "Passages retrieved per query")
	flag.IntVar(&timeout, "timeout", 0, "Pipeline timeout in seconds")
	flag.Parse()

	config, err := cfgPkg.LoadConfig(flags.ConfigPath)
	if err != nil {
		log.Fatal(err)
	}

	// Flags override file and environment values
	if dbURL != "" {
		config.Database.URL = dbURL
	}
	if model != "" {
		config.LLM.Model = model
	}
	if strategy != "" {
		config.Pipeline.RetrievalStrategy = strategy
	}
	if port != 0 {
		config.Server.Port = port
	}
	if topK != 0 {
		config.Pipeline.TopK = topK
	}
	if timeout != 0 {
		config.Pipeline.TimeoutSeconds = timeout
	}

	if errs := config.Validate(); len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config: %s\n", err)
		}
		os.Exit(1)
	}

	return flags, config
}

func newLogger(config cfgPkg.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if config.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Str("service", "sawdust").Logger()
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(flags Flags, config *cfgPkg.Config) error {
	logger := newLogger(config.Logging)

	client, err := llm.NewWithConfig(llm.ClientConfig{
		Model:       config.LLM.Model,
		Temperature: config.LLM.Temperature,
		MaxTokens:   config.LLM.MaxTokens,
		APIKey:      config.LLM.APIKey,
		BaseURL:     config.LLM.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %v", err)
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:   config.LLM.EmbeddingModel,
		APIKey:  config.LLM.APIKey,
		BaseURL: config.LLM.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %v", err)
	}

	st, err := store.NewWithConfig(store.StoreConfig{
		ConnString:    config.Database.URL,
		Partitions:    config.Database.Partitions,
		ProductsTable: config.Database.ProductsTable,
		VectorDim:     config.Database.VectorDim,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize store: %v", err)
	}
	defer st.Close()

	searcher, err := search.NewWithConfig(search.SearcherConfig{
		Strategy: config.Pipeline.RetrievalStrategy,
		TopK:     config.Pipeline.TopK,
		Logger:   logger,
	}, embedder, st)
	if err != nil {
		return fmt.Errorf("failed to initialize searcher: %v", err)
	}

	parser, err := markers.NewWithConfig(markers.ParserConfig{
		MaxDuration: config.Pipeline.MaxDurationSeconds,
		Logger:      logger,
	}, markers.NewLLMDescriber(client))
	if err != nil {
		return fmt.Errorf("failed to initialize marker parser: %v", err)
	}

	generator := answer.NewWithConfig(answer.GeneratorConfig{
		SystemPrompt: config.Pipeline.SystemPrompt,
		Logger:       logger,
	}, client)

	pipe := pipeline.NewWithConfig(pipeline.PipelineConfig{
		Timeout:    time.Duration(config.Pipeline.TimeoutSeconds) * time.Second,
		TopK:       config.Pipeline.TopK,
		Partitions: config.Database.Partitions,
		Logger:     logger,
	},
		intent.NewClassifier(client, logger),
		rewrite.NewRewriter(client, logger),
		searcher,
		generator,
		parser,
		products.NewMatcher(st, logger),
	)

	proc := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    config.Processor.ChunkSize,
		ChunkOverlap: config.Processor.ChunkOverlap,
	})

	ingestor := ingest.NewWithConfig(ingest.IngestorConfig{
		BatchSize: config.Database.BatchSize,
		Logger:    logger,
	}, proc, embedder, st)

	if flags.Ingest != "" {
		return runIngest(flags, config, ingestor)
	}

	if flags.Serve {
		srv := server.New(server.ServerConfig{
			Port:             config.Server.Port,
			DefaultPartition: config.Database.Partitions[0],
			Logger:           logger,
		}, pipe, st, ingestor)
		return srv.ListenAndServe()
	}

	return runChat(flags, pipe)
}

func runIngest(flags Flags, config *cfgPkg.Config, ingestor *ingest.Ingestor) error {
	data, err := os.ReadFile(flags.Ingest)
	if err != nil {
		return fmt.Errorf("failed to read transcript: %v", err)
	}

	text := string(data)
	if ext := strings.ToLower(flags.Ingest); strings.HasSuffix(ext, ".html") || strings.HasSuffix(ext, ".htm") {
		text, err = processor.ExtractHTML(strings.NewReader(string(data)))
		if err != nil {
			return fmt.Errorf("failed to extract transcript: %v", err)
		}
	}

	partition := flags.Partition
	if partition == "" {
		partition = config.Database.Partitions[0]
	}

	bar := getSpinner(" Embedding transcript...")
	count, err := ingestor.IngestTranscript(context.Background(), partition, "", flags.SourceURL, text)
	bar.Finish()
	if err != nil {
		return fmt.Errorf("failed to ingest transcript: %v", err)
	}

	color.Green("\n✓ Ingested %d chunks into %s\n", count, partition)
	return nil
}

func runChat(flags Flags, pipe *pipeline.Pipeline) error {
	// Interactive chat loop with colored output
	color.Cyan("\nAsk about Jason Bent's woodworking videos (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	var history []string

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := scanner.Text()
		if strings.ToLower(query) == "exit" {
			break
		}

		spinner := getSpinner(" Thinking...")
		envelope := pipe.Answer(context.Background(), query, history, flags.Partition)
		spinner.Finish()
		fmt.Print("\r")

		assistantPrompt("\nAssistant: %s\n", envelope.Response)

		for i := 0; i < len(envelope.VideoLinks); i++ {
			link := envelope.VideoLinks[fmt.Sprintf("%d", i)]
			if len(link.URLs) > 0 {
				color.Blue("  [%s] %s - %s", link.Timestamp, link.VideoTitle, link.URLs[0])
			}
		}
		for _, product := range envelope.RelatedProducts {
			color.Yellow("  Related: %s (%s)", product.Title, product.Link)
		}

		history = append(history, query, envelope.Response)
	}

	return nil
}
