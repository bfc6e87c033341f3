package entities

// MessageRecord is a single row from the message table, joined with the
// handle it belongs to. Text may live in any of four places: the plain
// text column, the legacy subject column, the serialized attributed
// body, or the raw payload blob. Records are never mutated after read.
type MessageRecord struct {
	ID                    int64
	Text                  *string
	Subject               *string
	AttributedBody        []byte
	PayloadData           []byte
	Date                  *int64 // nanoseconds since the Apple epoch, nil if unset
	DateRead              *int64
	DateDelivered         *int64
	IsFromMe              bool
	Service               *string
	Account               *string
	CacheHasAttachments   bool
	BalloonBundleID       *string
	AssociatedMessageType int64 // 0 for a plain message
	ContactIdentifier     string
	UncanonicalizedID     *string
}

// HasPlainText reports whether the plain text column carries content.
func (m *MessageRecord) HasPlainText() bool {
	return m.Text != nil && *m.Text != ""
}

// HasAttributedBody reports whether the rich-text blob is present.
func (m *MessageRecord) HasAttributedBody() bool {
	return len(m.AttributedBody) > 0
}
