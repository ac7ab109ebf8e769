package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/message"
)

const messageColumns = "id, sender_id, recipient_id, booking_id, subject, content, read_at, created_at"

type messageRow struct {
	ID          string      `db:"id"`
	SenderID    string      `db:"sender_id"`
	RecipientID string      `db:"recipient_id"`
	BookingID   null.String `db:"booking_id"`
	Subject     string      `db:"subject"`
	Content     string      `db:"content"`
	ReadAt      null.Time   `db:"read_at"`
	CreatedAt   time.Time   `db:"created_at"`
}

func (r messageRow) message() message.Message {
	return message.Message{
		ID:          r.ID,
		SenderID:    r.SenderID,
		RecipientID: r.RecipientID,
		BookingID:   r.BookingID.String,
		Subject:     r.Subject,
		Content:     r.Content,
		ReadAt:      utcPtr(r.ReadAt),
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type threadRow struct {
	messageRow
	CounterpartyID string `db:"counterparty_id"`
	Unread         int    `db:"unread"`
}

type messageRepository struct {
	base
}

var _ message.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db *sqlx.DB) *messageRepository {
	return &messageRepository{base{db: db}}
}

func (repo messageRepository) CreateMessage(ctx context.Context, m message.Message, exec ...core.DBExecutor) (message.Message, error) {
	m.ID = uuid.New().String()
	row := messageRow{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		BookingID:   nullString(m.BookingID),
		Subject:     m.Subject,
		Content:     m.Content,
		ReadAt:      nullTime(m.ReadAt),
		CreatedAt:   m.CreatedAt.UTC(),
	}
	q := `INSERT INTO messages (` + messageColumns + `)
		VALUES (:id, :sender_id, :recipient_id, :booking_id, :subject, :content, :read_at, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, row); err != nil {
		return message.Message{}, errors.Wrap(err, "inserting message")
	}
	return m, nil
}

func (repo messageRepository) QueryConversation(ctx context.Context, filter message.ConversationFilter, exec ...core.DBExecutor) ([]message.Message, error) {
	for _, id := range []string{filter.ProfileID, filter.OtherID} {
		if _, err := uuid.Parse(id); err != nil {
			return []message.Message{}, nil
		}
	}
	var w where
	w.add("((sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?))",
		filter.ProfileID, filter.OtherID, filter.OtherID, filter.ProfileID)
	if filter.BookingID != "" {
		if _, err := uuid.Parse(filter.BookingID); err != nil {
			return []message.Message{}, nil
		}
		w.add("booking_id = ?", filter.BookingID)
	}

	var rows []messageRow
	q := "SELECT " + messageColumns + " FROM messages" + w.String() + " ORDER BY created_at, id"
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying conversation")
	}
	messages := make([]message.Message, 0, len(rows))
	for _, r := range rows {
		messages = append(messages, r.message())
	}
	return messages, nil
}

func (repo messageRepository) QueryThreads(ctx context.Context, profileID string, exec ...core.DBExecutor) ([]message.Thread, error) {
	if _, err := uuid.Parse(profileID); err != nil {
		return []message.Thread{}, nil
	}
	q := `WITH mine AS (
			SELECT ` + messageColumns + `,
				CASE WHEN sender_id = $1 THEN recipient_id ELSE sender_id END AS counterparty_id
			FROM messages WHERE sender_id = $1 OR recipient_id = $1
		), last AS (
			SELECT DISTINCT ON (counterparty_id) * FROM mine ORDER BY counterparty_id, created_at DESC, id DESC
		)
		SELECT last.*, (
			SELECT COUNT(*) FROM messages u
			WHERE u.recipient_id = $1 AND u.sender_id = last.counterparty_id AND u.read_at IS NULL
		) AS unread
		FROM last ORDER BY created_at DESC`

	var rows []threadRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, profileID); err != nil {
		return nil, errors.Wrap(err, "querying threads")
	}
	threads := make([]message.Thread, 0, len(rows))
	for _, r := range rows {
		threads = append(threads, message.Thread{
			CounterpartyID: r.CounterpartyID,
			LastMessage:    r.message(),
			Unread:         r.Unread,
		})
	}
	return threads, nil
}

func (repo messageRepository) MarkRead(ctx context.Context, recipientID string, ids []string, at time.Time, exec ...core.DBExecutor) (int, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}
	q := "UPDATE messages SET read_at = $1 WHERE recipient_id = $2 AND id = ANY($3::uuid[]) AND read_at IS NULL"
	res, err := repo.getExec(exec).ExecContext(ctx, q, at.UTC(), recipientID, pq.Array(valid))
	if err != nil {
		return 0, errors.Wrap(err, "marking messages read")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "counting read messages")
}

func (repo messageRepository) CountUnread(ctx context.Context, recipientID string, exec ...core.DBExecutor) (int, error) {
	var n int
	q := "SELECT COUNT(*) FROM messages WHERE recipient_id = $1 AND read_at IS NULL"
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &n, q, recipientID); err != nil {
		return 0, errors.Wrap(err, "counting unread messages")
	}
	return n, nil
}
