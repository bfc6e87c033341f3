// Package recovery reconstructs human-readable message text from the
// alternative storage representations a chat.db row may carry. Rows
// written by recent OS versions often leave the plain text column NULL
// and keep the content only inside a serialized NSAttributedString, so
// plain column reads miss a large share of real messages.
package recovery

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"imessage-export/pkg/entities"
)

// Serialized rich-text objects always embed one of these class names.
// Their presence means the blob is framework structure around the
// message, not raw text.
var attributedMarkers = [][]byte{
	[]byte("NSAttributedString"),
	[]byte("NSMutableAttributedString"),
}

// Placeholder values substituted when no text can be recovered.
const (
	PlaceholderAttachment = "[Attachment]"
	PlaceholderReaction   = "[Reaction/Effect]"
	PlaceholderEmpty      = "[No text content]"
)

// Recover returns the best available text for a record, trying each
// candidate field in a fixed priority order and stopping at the first
// that yields anything. Candidates are never merged. A decode failure
// in one candidate is swallowed and the next is tried; Recover itself
// never fails, it only reports that nothing was recoverable.
func Recover(rec entities.MessageRecord) (string, bool) {
	if text, ok := fromString(rec.Text); ok {
		return text, true
	}
	if text, ok := fromString(rec.Subject); ok {
		return text, true
	}
	if text, ok := fromBlob(rec.AttributedBody); ok {
		return text, true
	}
	if text, ok := fromBlob(rec.PayloadData); ok {
		return text, true
	}
	return "", false
}

// Placeholder classifies why a record has no recoverable text. The
// order matters: an attachment row may also carry a balloon bundle id,
// and the attachment is the better description.
func Placeholder(rec entities.MessageRecord) string {
	switch {
	case rec.CacheHasAttachments:
		return PlaceholderAttachment
	case rec.BalloonBundleID != nil && *rec.BalloonBundleID != "":
		return fmt.Sprintf("[App Message: %s]", *rec.BalloonBundleID)
	case rec.AssociatedMessageType != 0:
		return PlaceholderReaction
	default:
		return PlaceholderEmpty
	}
}

// DisplayText is the recovered text, or a placeholder when recovery
// comes up empty.
func DisplayText(rec entities.MessageRecord) string {
	if text, ok := Recover(rec); ok {
		return text
	}
	return Placeholder(rec)
}

func fromString(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}

// fromBlob decodes a binary candidate. A blob carrying an attributed
// string marker is scanned for printable runs; the marker check comes
// before the whole-blob decode because serialized attributed strings
// are mostly NUL-separated printable fragments and would otherwise
// pass as "valid UTF-8" while being framework noise. A markerless blob
// is accepted only if it decodes cleanly as UTF-8.
func fromBlob(b []byte) (string, bool) {
	if len(b) == 0 {
		return "", false
	}

	for _, marker := range attributedMarkers {
		if bytes.Contains(b, marker) {
			runs := filterRuns(PrintableRuns(b))
			if best := longestRun(runs); best != "" {
				return best, true
			}
			return "", false
		}
	}

	if !utf8.Valid(b) {
		return "", false
	}
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}
