package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	e "imessage-export/pkg/entities"
)

var header = []string{"date", "sender", "message", "service", "has_attachments", "message_type"}

// Writer serializes conversation transcripts to CSV files, one file per
// export.
type Writer struct {
	// OutputDir is where export files land. Created on first use. A
	// leading ~ is accepted.
	OutputDir string

	// Now overrides the clock for filename timestamps. Nil means
	// time.Now.
	Now func() time.Time
}

// Export writes rows to a new CSV file named from the contact and the
// current time, and returns the file path. The write goes through a
// temp file renamed into place on success, so a failed export never
// leaves a partial file behind.
func (w *Writer) Export(rows []e.TranscriptRow, contactName string) (string, error) {
	dir, err := expandHome(w.OutputDir)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	now := time.Now
	if w.Now != nil {
		now = w.Now
	}

	filename := fmt.Sprintf("messages_%s_%s.csv", SanitizeName(contactName), now().Format("20060102_150405"))
	path := filepath.Join(dir, filename)

	tmp, err := os.CreateTemp(dir, filename+".tmp")
	if err != nil {
		return "", fmt.Errorf("creating export file: %w", err)
	}

	err = writeRows(tmp, rows)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("writing export file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("finalizing export file: %w", err)
	}

	return path, nil
}

func writeRows(f *os.File, rows []e.TranscriptRow) error {
	cw := csv.NewWriter(f)

	if err := cw.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		hasAttachments := "No"
		if row.HasAttachments {
			hasAttachments = "Yes"
		}

		record := []string{
			row.Date,
			row.Sender,
			row.Message,
			row.Service,
			hasAttachments,
			row.MessageType,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// SanitizeName reduces a contact label to characters safe in a
// filename: alphanumerics, space, dash and underscore survive,
// everything else is dropped, trailing spaces trimmed.
func SanitizeName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			sb.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			sb.WriteRune(r)
		}
	}
	return strings.TrimRight(sb.String(), " ")
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
