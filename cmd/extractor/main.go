package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"imessage-export/app/export"
	"imessage-export/app/extractor"
	"imessage-export/app/storage"
	"imessage-export/pkg/logger"
)

var opts struct {
	DBPath         string `long:"db-path" env:"CHAT_DB_PATH" default:"~/Downloads/chat.db" description:"path to the chat.db sqlite file"`
	OutputDir      string `long:"output" env:"OUTPUT_DIR" default:"~/Downloads" description:"directory for exported csv files"`
	Debug          bool   `long:"debug" env:"DEBUG" description:"enable debug logging and schema analysis"`
	AnalyzeContact string `long:"analyze-contact" description:"analyze empty messages for a contact and exit"`
}

var Revision = "dev"

func main() {
	_, err := flags.Parse(&opts)
	if err != nil {
		os.Exit(1)
	}

	log := logger.NewLogger(opts.Debug)
	log.Info("starting extractor", "revision", Revision)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := storage.NewChatDB(ctx, opts.DBPath)
	if err != nil {
		log.Error("opening chat database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("closing chat database", "error", err)
		}
	}()

	count, err := db.MessageCount(ctx)
	if err != nil {
		log.Error("counting messages", "error", err)
		os.Exit(1)
	}
	log.Info("connected to database", "path", db.Path(), "messages", count)

	if opts.Debug {
		logSchema(ctx, log, db)
	}

	app := &extractor.App{
		Log:      log,
		Contacts: db,
		Messages: db,
		Exporter: &export.Writer{OutputDir: opts.OutputDir},
		In:       os.Stdin,
		Out:      os.Stdout,
	}

	if opts.AnalyzeContact != "" {
		if err := app.AnalyzeContact(ctx, opts.AnalyzeContact); err != nil {
			log.Error("analyzing contact", "error", err, "term", opts.AnalyzeContact)
		}
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Error("running extractor", "error", err)
	}
}

func logSchema(ctx context.Context, log logger.Logger, db *storage.ChatDB) {
	columns, err := db.Schema(ctx)
	if err != nil {
		log.Warn("reading message schema", "error", err)
		return
	}
	for _, col := range columns {
		log.Debug("message column", "name", col.Name, "type", col.Type)
	}

	stats, err := db.AnalyzeText(ctx)
	if err != nil {
		log.Warn("analyzing text content", "error", err)
		return
	}
	log.Debug("text content analysis",
		"non_null_text", stats.NonNullText,
		"null_text", stats.NullText,
		"empty_text", stats.EmptyText,
		"with_attributed_body", stats.WithAttributed,
		"with_payload_data", stats.WithPayload,
	)
}
