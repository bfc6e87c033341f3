package entities

// Contact is an aggregated view of a handle: who it is and how much
// conversation history it carries.
type Contact struct {
	HandleID          int64
	Identifier        string // phone number or email
	UncanonicalizedID *string
	Service           *string
	MessageCount      int64
	TextMessageCount  int64
	LastMessageDate   *int64 // nanoseconds since the Apple epoch, nil if unset
}

// TranscriptRow is one exported line of a conversation: everything the
// CSV writer needs, already rendered to display values.
type TranscriptRow struct {
	Date           string
	Sender         string
	Message        string
	Service        string
	HasAttachments bool
	MessageType    string
}
