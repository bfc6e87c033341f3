package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	e "imessage-export/pkg/entities"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+1 (555) 123-4567", "1 555 123-4567"},
		{"user@example.com", "userexamplecom"},
		{"Anna Smith", "Anna Smith"},
		{"../../etc/passwd", "etcpasswd"},
		{"trailing space ", "trailing space"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeName(tt.in), "input %q", tt.in)
	}
}

func TestExportWritesTranscript(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{
		OutputDir: dir,
		Now: func() time.Time {
			return time.Date(2024, time.March, 5, 13, 45, 6, 0, time.UTC)
		},
	}

	rows := []e.TranscriptRow{
		{
			Date:        "2023-06-01 10:00:00",
			Sender:      "Me",
			Message:     "hello there",
			Service:     "iMessage",
			MessageType: "Text",
		},
		{
			Date:           "2023-06-01 10:01:00",
			Sender:         "+15551234567",
			Message:        "[Attachment]",
			Service:        "SMS",
			HasAttachments: true,
			MessageType:    "Text",
		},
	}

	path, err := w.Export(rows, "+1 (555) 123-4567")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "messages_1 555 123-4567_20240305_134506.csv"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"date", "sender", "message", "service", "has_attachments", "message_type"}, records[0])
	assert.Equal(t, []string{"2023-06-01 10:00:00", "Me", "hello there", "iMessage", "No", "Text"}, records[1])
	assert.Equal(t, []string{"2023-06-01 10:01:00", "+15551234567", "[Attachment]", "SMS", "Yes", "Text"}, records[2])
}

func TestExportHeaderOnlyForNoRows(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{OutputDir: dir}

	path, err := w.Export(nil, "someone")
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "date,sender,message,service,has_attachments,message_type\n", string(content))
}

func TestExportLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{OutputDir: dir}

	_, err := w.Export([]e.TranscriptRow{{Sender: "Me", Message: "hi"}}, "someone")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".csv", filepath.Ext(entries[0].Name()))
}

func TestExportCreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "exports")
	w := &Writer{OutputDir: dir}

	path, err := w.Export(nil, "someone")
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
}
