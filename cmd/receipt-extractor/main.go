package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/receipt-extractor/internal/config"
	"github.com/zombor/receipt-extractor/internal/enhance"
	"github.com/zombor/receipt-extractor/internal/extraction"
	"github.com/zombor/receipt-extractor/internal/ocr"
	"github.com/zombor/receipt-extractor/internal/receipt"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

type options struct {
	port           *int
	dbPath         *string
	configPath     *string
	input          *string
	enhancer       *string
	ocr            *string
	geminiKey      *string
	geminiModel    *string
	geminiOCRModel *string
	ollamaURL      *string
	ollamaModel    *string
	ollamaOCRModel *string
	enhanceTimeout *time.Duration
	debug          *bool
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("receipt-extractor")
	opts := options{
		port:           fs.IntLong("port", 8080, "HTTP server port"),
		dbPath:         fs.StringLong("db", "receipt-extractor.db", "Database file path"),
		configPath:     fs.StringLong("config", "", "Tuning file path (YAML)"),
		input:          fs.StringLong("input", "", "Extract one file ('-' for stdin), print JSON and exit"),
		enhancer:       fs.StringLong("enhancer", "none", "Enhancement model: 'none', 'gemini' or 'ollama'"),
		ocr:            fs.StringLong("ocr", "none", "OCR for images and scanned PDFs: 'none', 'gemini' or 'ollama'"),
		geminiKey:      fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)"),
		geminiModel:    fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model for enhancement"),
		geminiOCRModel: fs.StringLong("gemini-ocr-model", "gemini-2.5-pro", "Google Gemini model for OCR"),
		ollamaURL:      fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL"),
		ollamaModel:    fs.StringLong("ollama-model", "llama3.1", "Ollama model for enhancement"),
		ollamaOCRModel: fs.StringLong("ollama-ocr-model", "llava", "Ollama vision model for OCR (e.g., llava, qwen2-vl)"),
		enhanceTimeout: fs.DurationLong("enhance-timeout", 0, "Override enhancement.timeout from the tuning file"),
		debug:          fs.BoolLong("debug", "Log each extraction stage"),
	}
	showVersion := fs.BoolLong("version", "Show version information")

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_EXTRACTOR"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *opts.debug {
		level = slog.LevelDebug
	}
	// Logs go to stderr so --input output stays clean JSON
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(opts); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg := config.Default()
	if *opts.configPath != "" {
		var err error
		if cfg, err = config.Load(*opts.configPath); err != nil {
			return err
		}
	}
	if *opts.enhanceTimeout > 0 {
		cfg.Enhancement.Timeout = *opts.enhanceTimeout
	}

	enhancer, err := newEnhancer(opts)
	if err != nil {
		return err
	}
	if enhancer != nil {
		defer enhancer.Close()
	}

	vision, err := newVision(opts)
	if err != nil {
		return err
	}
	recognizer := ocr.NewExtractor(vision, slog.Default())
	defer recognizer.Close()

	if *opts.input != "" {
		pipeline := extraction.NewPipelineWithEnhancer(cfg.PipelineOptions(slog.Default()), enhancer, nil)
		return extractFile(*opts.input, recognizer, pipeline, os.Stdout)
	}

	return serve(opts, cfg, enhancer, recognizer)
}

// newEnhancer returns nil when enhancement is disabled
func newEnhancer(opts options) (enhance.Client, error) {
	switch *opts.enhancer {
	case "none", "":
		return nil, nil
	case "gemini":
		apiKey, err := geminiAPIKey(opts)
		if err != nil {
			return nil, err
		}
		slog.Info("Initializing Gemini enhancer...", "model", *opts.geminiModel)
		client, err := enhance.NewGemini(apiKey, *opts.geminiModel)
		if err != nil {
			return nil, fmt.Errorf("initializing Gemini enhancer: %w", err)
		}
		return client, nil
	case "ollama":
		slog.Info("Initializing Ollama enhancer...", "url", *opts.ollamaURL, "model", *opts.ollamaModel)
		client, err := enhance.NewOllama(*opts.ollamaURL, *opts.ollamaModel)
		if err != nil {
			return nil, fmt.Errorf("initializing Ollama enhancer: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("invalid enhancer %q: valid values are none, gemini or ollama", *opts.enhancer)
	}
}

// newVision returns nil when OCR is disabled
func newVision(opts options) (ocr.Recognizer, error) {
	switch *opts.ocr {
	case "none", "":
		return nil, nil
	case "gemini":
		apiKey, err := geminiAPIKey(opts)
		if err != nil {
			return nil, err
		}
		slog.Info("Initializing Gemini OCR...", "model", *opts.geminiOCRModel)
		vision, err := ocr.NewGemini(apiKey, *opts.geminiOCRModel)
		if err != nil {
			return nil, fmt.Errorf("initializing Gemini OCR: %w", err)
		}
		return vision, nil
	case "ollama":
		slog.Info("Initializing Ollama OCR...", "url", *opts.ollamaURL, "model", *opts.ollamaOCRModel)
		vision, err := ocr.NewOllama(*opts.ollamaURL, *opts.ollamaOCRModel)
		if err != nil {
			return nil, fmt.Errorf("initializing Ollama OCR: %w", err)
		}
		return vision, nil
	default:
		return nil, fmt.Errorf("invalid ocr %q: valid values are none, gemini or ollama", *opts.ocr)
	}
}

func geminiAPIKey(opts options) (string, error) {
	apiKey := *opts.geminiKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return "", errors.New("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
	}
	return apiKey, nil
}

// extractFile runs one file through the pipeline and writes the record as
// JSON. Text files are used as-is; anything else goes through OCR.
func extractFile(path string, recognizer *ocr.Extractor, pipeline *extraction.Pipeline, out io.Writer) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in := extraction.Input{Text: string(data), Confidence: 1, Success: true}
	if contentType := http.DetectContentType(data); !strings.HasPrefix(contentType, "text/") {
		slog.Info("Recognizing input", "content_type", contentType)
		if in, err = recognizer.Recognize(ctx, data, contentType); err != nil {
			return fmt.Errorf("recognizing input: %w", err)
		}
	}

	record := pipeline.Extract(ctx, in)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	return nil
}

func serve(opts options, cfg *config.Config, enhancer enhance.Client, recognizer *ocr.Extractor) error {
	slog.Info("Initializing database...")
	db, err := receipt.NewBoltDB(*opts.dbPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	pipeline := extraction.NewPipelineWithEnhancer(cfg.PipelineOptions(slog.Default()), enhancer, db)

	thresholds := receipt.Thresholds{
		AutoAccept: cfg.Thresholds.AutoAccept,
		Review:     cfg.Thresholds.Review,
	}
	receiptService := receipt.NewService(db, pipeline, recognizer, thresholds)

	server := receipt.NewServer(receiptService)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *opts.port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(addr)
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr),
		"enhancer", *opts.enhancer, "ocr", *opts.ocr)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
		slog.Info("Shutting down...")
		return nil
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}
