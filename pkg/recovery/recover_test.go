package recovery

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	e "imessage-export/pkg/entities"
)

func ptr(s string) *string { return &s }

// attributedBlob builds a synthetic serialized attributed string: the
// marker and every fragment separated by non-printable bytes.
func attributedBlob(marker string, fragments ...string) []byte {
	var buf bytes.Buffer
	buf.WriteByte(0x04)
	buf.WriteString(marker)
	for _, fragment := range fragments {
		buf.WriteByte(0x00)
		buf.WriteByte(0x81)
		buf.WriteString(fragment)
	}
	buf.WriteByte(0x00)
	return buf.Bytes()
}

func TestRecoverPlainTextWinsOverEverything(t *testing.T) {
	rec := e.MessageRecord{
		Text:           ptr("  plain text message  "),
		Subject:        ptr("legacy subject text"),
		AttributedBody: attributedBlob("NSAttributedString", "a rich text body that is long enough"),
		PayloadData:    []byte("payload text that would otherwise win"),
	}

	text, ok := Recover(rec)
	require.True(t, ok)
	assert.Equal(t, "plain text message", text)
}

func TestRecoverFallsBackToSubject(t *testing.T) {
	rec := e.MessageRecord{
		Text:    ptr("   "),
		Subject: ptr("legacy subject text"),
	}

	text, ok := Recover(rec)
	require.True(t, ok)
	assert.Equal(t, "legacy subject text", text)
}

func TestRecoverCleanUTF8Blob(t *testing.T) {
	rec := e.MessageRecord{
		AttributedBody: []byte("just a plainly encoded body"),
	}

	text, ok := Recover(rec)
	require.True(t, ok)
	assert.Equal(t, "just a plainly encoded body", text)
}

func TestRecoverBlankUTF8BlobFallsThrough(t *testing.T) {
	rec := e.MessageRecord{
		AttributedBody: []byte("   \n  "),
		PayloadData:    []byte("payload carries the content"),
	}

	text, ok := Recover(rec)
	require.True(t, ok)
	assert.Equal(t, "payload carries the content", text)
}

func TestRecoverLongestRunWins(t *testing.T) {
	short := "fifteen chars.." // 15 chars, discarded by length
	long := "this is the actual message content!"
	require.Len(t, short, 15)
	require.Len(t, long, 35)

	rec := e.MessageRecord{
		AttributedBody: attributedBlob("NSAttributedString", short, long),
	}

	text, ok := Recover(rec)
	require.True(t, ok)
	assert.Equal(t, long, text)
}

func TestRecoverMutableMarkerAlsoTriggersScan(t *testing.T) {
	long := "another message hiding in the blob here"

	rec := e.MessageRecord{
		AttributedBody: attributedBlob("NSMutableAttributedString", long),
	}

	text, ok := Recover(rec)
	require.True(t, ok)
	assert.Equal(t, long, text)
}

func TestRecoverFrameworkRunsAreNoise(t *testing.T) {
	rec := e.MessageRecord{
		AttributedBody: attributedBlob(
			"NSAttributedString",
			"NSDictionaryOfAttributeKeysAndValues",
			"__kIMMessagePartAttributeName",
		),
		PayloadData: []byte("recovered from the payload instead"),
	}

	text, ok := Recover(rec)
	require.True(t, ok)
	assert.Equal(t, "recovered from the payload instead", text)
}

func TestRecoverInvalidUTF8WithoutMarkerFails(t *testing.T) {
	rec := e.MessageRecord{
		AttributedBody: []byte{0xff, 0xfe, 0x00, 0x41},
	}

	_, ok := Recover(rec)
	assert.False(t, ok)
}

func TestRecoverNothingRecoverable(t *testing.T) {
	rec := e.MessageRecord{
		Text:           ptr(""),
		AttributedBody: attributedBlob("NSAttributedString"),
	}

	_, ok := Recover(rec)
	assert.False(t, ok)
}

func TestRecoverIsIdempotent(t *testing.T) {
	rec := e.MessageRecord{
		AttributedBody: attributedBlob("NSAttributedString", "the same answer every single time"),
	}

	first, okFirst := Recover(rec)
	second, okSecond := Recover(rec)
	assert.Equal(t, okFirst, okSecond)
	assert.Equal(t, first, second)
}

func TestPlaceholderOrdering(t *testing.T) {
	bundle := "com.apple.messages.URLBalloonProvider"

	tests := []struct {
		name string
		rec  e.MessageRecord
		want string
	}{
		{
			name: "attachment beats bundle",
			rec: e.MessageRecord{
				CacheHasAttachments: true,
				BalloonBundleID:     &bundle,
			},
			want: "[Attachment]",
		},
		{
			name: "bundle beats reaction",
			rec: e.MessageRecord{
				BalloonBundleID:       &bundle,
				AssociatedMessageType: 2000,
			},
			want: "[App Message: com.apple.messages.URLBalloonProvider]",
		},
		{
			name: "reaction",
			rec:  e.MessageRecord{AssociatedMessageType: 2000},
			want: "[Reaction/Effect]",
		},
		{
			name: "truly empty",
			rec:  e.MessageRecord{},
			want: "[No text content]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Placeholder(tt.rec))
		})
	}
}

func TestDisplayTextMarkerOnlyBlob(t *testing.T) {
	rec := e.MessageRecord{
		AttributedBody: attributedBlob("NSAttributedString"),
	}

	assert.Equal(t, "[No text content]", DisplayText(rec))
}

func TestDisplayTextPrefersRecoveredText(t *testing.T) {
	rec := e.MessageRecord{
		Text:                ptr("hello"),
		CacheHasAttachments: true,
	}

	assert.Equal(t, "hello", DisplayText(rec))
}
