// Package extractor drives the tool: the interactive numbered menu,
// the batch analyze mode, and the record-to-transcript processing in
// between the storage reader and the CSV writer.
package extractor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"imessage-export/app/export"
	"imessage-export/pkg/appletime"
	e "imessage-export/pkg/entities"
	"imessage-export/pkg/logger"
	"imessage-export/pkg/recovery"
)

// ContactStore searches handles and their conversation statistics.
type ContactStore interface {
	SearchContacts(ctx context.Context, term string, limit int) ([]e.Contact, error)
}

// MessageStore loads conversation history for a handle.
type MessageStore interface {
	MessagesForContact(ctx context.Context, handleID int64, limit int) ([]e.MessageRecord, error)
	EmptyMessages(ctx context.Context, handleID int64, limit int) ([]e.MessageRecord, error)
}

const (
	defaultSearchLimit  = 50
	defaultAnalyzeLimit = 10
	previewCount        = 5
)

// App is the interactive extractor. All collaborators are injected;
// Run owns no resources of its own.
type App struct {
	// Log is a logger
	Log logger.Logger

	// Contacts searches handles
	Contacts ContactStore

	// Messages loads per-handle history
	Messages MessageStore

	// Exporter writes CSV transcripts
	Exporter *export.Writer

	// In and Out are the terminal streams
	In  io.Reader
	Out io.Writer

	scanner *bufio.Scanner
}

// Run presents the numbered menu until the user exits, input ends, or
// the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.scanner = bufio.NewScanner(a.In)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		a.printf("\n%s\n", headerStyle.Render("Options:"))
		a.printf("1. Search for contacts\n")
		a.printf("2. Extract messages for a contact\n")
		a.printf("3. Analyze empty messages for a contact\n")
		a.printf("4. Exit\n")

		choice, ok := a.prompt("Enter your choice (1-4): ")
		if !ok {
			return nil
		}

		switch choice {
		case "1":
			a.runSearch(ctx)
		case "2":
			a.runExtract(ctx)
		case "3":
			a.runAnalyze(ctx)
		case "4":
			return nil
		default:
			a.printf("%s\n", warningStyle.Render("Please enter a number between 1 and 4"))
		}
	}
}

// AnalyzeContact is the non-interactive --analyze-contact mode: stats
// plus empty-message analysis for the first handle matching term.
func (a *App) AnalyzeContact(ctx context.Context, term string) error {
	contacts, err := a.Contacts.SearchContacts(ctx, term, defaultSearchLimit)
	if err != nil {
		return fmt.Errorf("searching contacts: %w", err)
	}
	if len(contacts) == 0 {
		return fmt.Errorf("no contact matches %q", term)
	}

	contact := contacts[0]
	a.printf("%s %s\n", headerStyle.Render("Analyzing contact:"), contact.Identifier)
	a.printf("Total messages: %d\n", contact.MessageCount)
	a.printf("Text messages: %d\n", contact.TextMessageCount)

	if err := a.analyzeEmpty(ctx, contact.HandleID); err != nil {
		return err
	}

	records, err := a.Messages.MessagesForContact(ctx, contact.HandleID, 0)
	if err != nil {
		return fmt.Errorf("loading messages: %w", err)
	}

	rows, recovered := ProcessMessages(records)
	a.printf("Text extraction summary: %d/%d messages have readable text\n", recovered, len(rows))

	return nil
}

// ProcessMessages turns raw records into transcript rows, running text
// recovery and timestamp conversion on each. The second return value
// counts records whose text was actually recovered rather than
// replaced by a placeholder.
func ProcessMessages(records []e.MessageRecord) ([]e.TranscriptRow, int) {
	rows := make([]e.TranscriptRow, 0, len(records))
	recovered := 0

	for _, rec := range records {
		text, ok := recovery.Recover(rec)
		if ok {
			recovered++
		} else {
			text = recovery.Placeholder(rec)
		}

		sender := rec.ContactIdentifier
		if rec.IsFromMe {
			sender = "Me"
		}

		service := "Unknown"
		if rec.Service != nil && *rec.Service != "" {
			service = *rec.Service
		}

		messageType := "Text"
		if rec.BalloonBundleID != nil && *rec.BalloonBundleID != "" {
			messageType = *rec.BalloonBundleID
		}

		rows = append(rows, e.TranscriptRow{
			Date:           appletime.Format(rec.Date),
			Sender:         sender,
			Message:        text,
			Service:        service,
			HasAttachments: rec.CacheHasAttachments,
			MessageType:    messageType,
		})
	}

	return rows, recovered
}

func (a *App) runSearch(ctx context.Context) {
	term, ok := a.prompt("Enter search term: ")
	if !ok {
		return
	}

	contacts, err := a.Contacts.SearchContacts(ctx, term, defaultSearchLimit)
	if err != nil {
		a.Log.Error("searching contacts", "error", err)
		a.printf("%s\n", errorStyle.Render("Search failed: "+err.Error()))
		return
	}

	a.printContacts(contacts)
}

func (a *App) runExtract(ctx context.Context) {
	term, ok := a.prompt("Enter contact to extract: ")
	if !ok {
		return
	}

	contacts, err := a.Contacts.SearchContacts(ctx, term, defaultSearchLimit)
	if err != nil {
		a.Log.Error("searching contacts", "error", err)
		a.printf("%s\n", errorStyle.Render("Search failed: "+err.Error()))
		return
	}
	if len(contacts) == 0 {
		a.printf("%s\n", warningStyle.Render("No contacts found"))
		return
	}

	a.printContacts(contacts)

	selection, ok := a.prompt("Select contact: ")
	if !ok {
		return
	}
	index, err := strconv.Atoi(selection)
	if err != nil || index < 1 || index > len(contacts) {
		a.printf("%s\n", errorStyle.Render("Invalid selection"))
		return
	}
	contact := contacts[index-1]

	records, err := a.Messages.MessagesForContact(ctx, contact.HandleID, 0)
	if err != nil {
		a.Log.Error("loading messages", "error", err, "handle_id", contact.HandleID)
		a.printf("%s\n", errorStyle.Render("Loading messages failed: "+err.Error()))
		return
	}
	if len(records) == 0 {
		a.printf("%s\n", warningStyle.Render("No messages for this contact"))
		return
	}

	rows, recovered := ProcessMessages(records)
	a.printf("Text extraction summary: %d/%d messages have readable text\n", recovered, len(rows))

	a.printf("\n%s\n", headerStyle.Render(fmt.Sprintf("First %d messages:", min(previewCount, len(rows)))))
	for _, row := range rows[:min(previewCount, len(rows))] {
		a.printf("[%s] %s: %s\n", infoStyle.Render(row.Date), promptStyle.Render(row.Sender), row.Message)
	}

	confirm, ok := a.prompt("\nExport to CSV? (y/n): ")
	if !ok || strings.ToLower(confirm) != "y" {
		return
	}

	path, err := a.Exporter.Export(rows, contact.Identifier)
	if err != nil {
		a.Log.Error("exporting messages", "error", err, "contact", contact.Identifier)
		a.printf("%s\n", errorStyle.Render("Export failed: "+err.Error()))
		return
	}

	a.printf("%s %s\n", successStyle.Render("Messages exported to:"), path)
}

func (a *App) runAnalyze(ctx context.Context) {
	term, ok := a.prompt("Enter contact to analyze: ")
	if !ok {
		return
	}

	contacts, err := a.Contacts.SearchContacts(ctx, term, defaultSearchLimit)
	if err != nil {
		a.Log.Error("searching contacts", "error", err)
		a.printf("%s\n", errorStyle.Render("Search failed: "+err.Error()))
		return
	}
	if len(contacts) == 0 {
		a.printf("%s\n", warningStyle.Render("No contacts found"))
		return
	}

	if err := a.analyzeEmpty(ctx, contacts[0].HandleID); err != nil {
		a.Log.Error("analyzing empty messages", "error", err)
		a.printf("%s\n", errorStyle.Render("Analysis failed: "+err.Error()))
	}
}

func (a *App) analyzeEmpty(ctx context.Context, handleID int64) error {
	records, err := a.Messages.EmptyMessages(ctx, handleID, defaultAnalyzeLimit)
	if err != nil {
		return fmt.Errorf("loading empty messages: %w", err)
	}
	if len(records) == 0 {
		a.printf("%s\n", infoStyle.Render("No messages without text for this contact"))
		return nil
	}

	a.printf("\n%s\n", headerStyle.Render(fmt.Sprintf("Analyzing %d messages with no text:", len(records))))
	for _, rec := range records {
		a.printf("\nMessage ID: %d\n", rec.ID)
		a.printf("  Date: %s\n", appletime.Format(rec.Date))
		a.printf("  Has attachments: %t\n", rec.CacheHasAttachments)
		a.printf("  Balloon bundle: %s\n", stringOr(rec.BalloonBundleID, "<none>"))
		a.printf("  Message type: %d\n", rec.AssociatedMessageType)
		a.printf("  Service: %s\n", stringOr(rec.Service, "<none>"))
		a.printf("  AttributedBody length: %d\n", len(rec.AttributedBody))
		a.printf("  PayloadData length: %d\n", len(rec.PayloadData))

		if text, ok := recovery.Recover(rec); ok {
			a.printf("  Recovered: %s\n", successStyle.Render(text))
		} else {
			a.printf("  Recovered: %s\n", warningStyle.Render(recovery.Placeholder(rec)))
		}
	}

	return nil
}

func (a *App) printContacts(contacts []e.Contact) {
	if len(contacts) == 0 {
		a.printf("%s\n", warningStyle.Render("No contacts found"))
		return
	}

	a.printf("\n%s\n", headerStyle.Render(fmt.Sprintf("Found %d contact(s):", len(contacts))))
	for i, contact := range contacts {
		a.printf("%2d. %s (%d total, %d with text)\n",
			i+1, contact.Identifier, contact.MessageCount, contact.TextMessageCount)
	}
}

// prompt prints a styled prompt and reads one trimmed line. The second
// return value is false when input has ended.
func (a *App) prompt(text string) (string, bool) {
	a.printf("%s", promptStyle.Render(text))
	if !a.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(a.scanner.Text()), true
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.Out, format, args...)
}

func stringOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
