package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	e "imessage-export/pkg/entities"
)

// ChatDB is a read-only handle on an iMessage chat.db. It owns the
// underlying connection; callers open it once per run and close it on
// every exit path.
type ChatDB struct {
	db   *sql.DB
	path string
}

// NewChatDB opens the database at path (a leading ~ is expanded) and
// verifies it is readable by counting messages. The file must already
// exist; this tool never creates or migrates a database.
func NewChatDB(ctx context.Context, path string) (*ChatDB, error) {
	path, err := expandHome(path)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database file not found: %s", path)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite3 database: %w", err)
	}

	client := &ChatDB{
		db:   db,
		path: path,
	}

	if _, err := client.MessageCount(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("verifying database: %w", err)
	}

	return client, nil
}

func (c *ChatDB) Close() error {
	return c.db.Close()
}

// Path returns the resolved filesystem path of the open database.
func (c *ChatDB) Path() string {
	return c.path
}

// MessageCount returns the total number of rows in the message table.
func (c *ChatDB) MessageCount(ctx context.Context) (int64, error) {
	var count int64
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM message").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return count, nil
}

// SearchContacts finds handles whose id or uncanonicalized id matches
// term (every handle when term is empty), with per-handle message
// statistics. Handles without any messages are skipped. Results are
// ordered by message count, busiest first.
func (c *ChatDB) SearchContacts(ctx context.Context, term string, limit int) ([]e.Contact, error) {
	query := `
		SELECT
			h.ROWID,
			h.id,
			h.uncanonicalized_id,
			h.service,
			COUNT(m.ROWID) AS message_count,
			SUM(CASE WHEN m.text IS NOT NULL AND m.text != '' THEN 1 ELSE 0 END) AS text_message_count,
			MAX(m.date) AS last_message_date
		FROM handle h
		LEFT JOIN chat_handle_join chj ON h.ROWID = chj.handle_id
		LEFT JOIN chat c ON chj.chat_id = c.ROWID
		LEFT JOIN chat_message_join cmj ON c.ROWID = cmj.chat_id
		LEFT JOIN message m ON cmj.message_id = m.ROWID
		WHERE ? = '' OR h.id LIKE ? OR h.uncanonicalized_id LIKE ?
		GROUP BY h.ROWID
		HAVING message_count > 0
		ORDER BY message_count DESC
		LIMIT ?`

	pattern := "%" + term + "%"
	rows, err := c.db.QueryContext(ctx, query, term, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("searching contacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var contacts []e.Contact
	for rows.Next() {
		var (
			contact         e.Contact
			uncanonicalized sql.NullString
			service         sql.NullString
			textCount       sql.NullInt64
			lastDate        sql.NullInt64
		)
		err = rows.Scan(
			&contact.HandleID,
			&contact.Identifier,
			&uncanonicalized,
			&service,
			&contact.MessageCount,
			&textCount,
			&lastDate,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning contact row: %w", err)
		}

		contact.UncanonicalizedID = nullableString(uncanonicalized)
		contact.Service = nullableString(service)
		contact.TextMessageCount = textCount.Int64
		contact.LastMessageDate = nullableInt64(lastDate)
		contacts = append(contacts, contact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating contact rows: %w", err)
	}

	return contacts, nil
}

const messageColumns = `
	m.ROWID,
	m.text,
	m.subject,
	m.attributedBody,
	m.payload_data,
	m.date,
	m.date_read,
	m.date_delivered,
	m.is_from_me,
	m.service,
	m.account,
	m.cache_has_attachments,
	m.balloon_bundle_id,
	m.associated_message_type,
	h.id,
	h.uncanonicalized_id`

const messageJoins = `
	FROM message m
	JOIN chat_message_join cmj ON m.ROWID = cmj.message_id
	JOIN chat c ON cmj.chat_id = c.ROWID
	JOIN chat_handle_join chj ON c.ROWID = chj.chat_id
	JOIN handle h ON chj.handle_id = h.ROWID`

// MessagesForContact loads the full conversation with a handle, oldest
// first. A limit <= 0 means no limit.
func (c *ChatDB) MessagesForContact(ctx context.Context, handleID int64, limit int) ([]e.MessageRecord, error) {
	query := "SELECT DISTINCT" + messageColumns + messageJoins + `
		WHERE h.ROWID = ?
		ORDER BY m.date ASC`

	args := []any{handleID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanMessages(rows)
}

// EmptyMessages loads messages for a handle whose plain text column is
// NULL or empty, for debugging what the recovery engine has to work
// with.
func (c *ChatDB) EmptyMessages(ctx context.Context, handleID int64, limit int) ([]e.MessageRecord, error) {
	query := "SELECT DISTINCT" + messageColumns + messageJoins + `
		WHERE h.ROWID = ? AND (m.text IS NULL OR m.text = '')
		ORDER BY m.date ASC
		LIMIT ?`

	rows, err := c.db.QueryContext(ctx, query, handleID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying empty messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]e.MessageRecord, error) {
	var messages []e.MessageRecord
	for rows.Next() {
		var (
			rec             e.MessageRecord
			text            sql.NullString
			subject         sql.NullString
			date            sql.NullInt64
			dateRead        sql.NullInt64
			dateDelivered   sql.NullInt64
			isFromMe        sql.NullInt64
			service         sql.NullString
			account         sql.NullString
			hasAttachments  sql.NullInt64
			balloonBundle   sql.NullString
			associatedType  sql.NullInt64
			uncanonicalized sql.NullString
		)
		err := rows.Scan(
			&rec.ID,
			&text,
			&subject,
			&rec.AttributedBody,
			&rec.PayloadData,
			&date,
			&dateRead,
			&dateDelivered,
			&isFromMe,
			&service,
			&account,
			&hasAttachments,
			&balloonBundle,
			&associatedType,
			&rec.ContactIdentifier,
			&uncanonicalized,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}

		rec.Text = nullableString(text)
		rec.Subject = nullableString(subject)
		rec.Date = nullableInt64(date)
		rec.DateRead = nullableInt64(dateRead)
		rec.DateDelivered = nullableInt64(dateDelivered)
		rec.IsFromMe = isFromMe.Int64 != 0
		rec.Service = nullableString(service)
		rec.Account = nullableString(account)
		rec.CacheHasAttachments = hasAttachments.Int64 != 0
		rec.BalloonBundleID = nullableString(balloonBundle)
		rec.AssociatedMessageType = associatedType.Int64
		rec.UncanonicalizedID = nullableString(uncanonicalized)
		messages = append(messages, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}

	return messages, nil
}

// Column describes one column of the message table schema.
type Column struct {
	Name string
	Type string
}

// TextStats is a census of where message text actually lives, used by
// debug output to explain why plain column reads come up short.
type TextStats struct {
	NonNullText    int64
	NullText       int64
	EmptyText      int64
	WithAttributed int64
	WithPayload    int64
}

// Schema returns the message table layout.
func (c *ChatDB) Schema(ctx context.Context) ([]Column, error) {
	rows, err := c.db.QueryContext(ctx, "PRAGMA table_info(message)")
	if err != nil {
		return nil, fmt.Errorf("reading message schema: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []Column
	for rows.Next() {
		var (
			cid       int64
			col       Column
			notNull   int64
			dfltValue sql.NullString
			pk        int64
		)
		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scanning schema row: %w", err)
		}
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schema rows: %w", err)
	}

	return columns, nil
}

// AnalyzeText runs the text-content census over the message table.
func (c *ChatDB) AnalyzeText(ctx context.Context) (TextStats, error) {
	var stats TextStats
	counts := []struct {
		dst   *int64
		query string
	}{
		{&stats.NonNullText, "SELECT COUNT(*) FROM message WHERE text IS NOT NULL AND text != ''"},
		{&stats.NullText, "SELECT COUNT(*) FROM message WHERE text IS NULL"},
		{&stats.EmptyText, "SELECT COUNT(*) FROM message WHERE text = ''"},
		{&stats.WithAttributed, "SELECT COUNT(*) FROM message WHERE attributedBody IS NOT NULL"},
		{&stats.WithPayload, "SELECT COUNT(*) FROM message WHERE payload_data IS NOT NULL"},
	}

	for _, count := range counts {
		if err := c.db.QueryRowContext(ctx, count.query).Scan(count.dst); err != nil {
			return stats, fmt.Errorf("analyzing text content: %w", err)
		}
	}

	return stats, nil
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

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullableInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
