package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/message"
)

type messageRepository struct {
	db *DB
}

var _ message.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db *DB) *messageRepository {
	return &messageRepository{db: db}
}

func (repo *messageRepository) CreateMessage(ctx context.Context, m message.Message, exec ...core.DBExecutor) (message.Message, error) {
	tbl := repo.db.messages
	tbl.Lock()
	defer tbl.Unlock()

	m.ID = uuid.New().String()
	tbl.t[m.ID] = m
	return m, nil
}

// sortMessages orders messages oldest first.
func sortMessages(msgs []message.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
}

func (repo *messageRepository) QueryConversation(ctx context.Context, filter message.ConversationFilter, exec ...core.DBExecutor) ([]message.Message, error) {
	tbl := repo.db.messages
	tbl.RLock()
	defer tbl.RUnlock()

	res := make([]message.Message, 0)
	for _, m := range tbl.t {
		between := (m.SenderID == filter.ProfileID && m.RecipientID == filter.OtherID) ||
			(m.SenderID == filter.OtherID && m.RecipientID == filter.ProfileID)
		if !between || (filter.BookingID != "" && m.BookingID != filter.BookingID) {
			continue
		}
		res = append(res, m)
	}
	sortMessages(res)
	return res, nil
}

func (repo *messageRepository) QueryThreads(ctx context.Context, profileID string, exec ...core.DBExecutor) ([]message.Thread, error) {
	tbl := repo.db.messages
	tbl.RLock()
	defer tbl.RUnlock()

	mine := make([]message.Message, 0)
	for _, m := range tbl.t {
		if m.SenderID == profileID || m.RecipientID == profileID {
			mine = append(mine, m)
		}
	}
	sortMessages(mine)

	byCounterparty := make(map[string]*message.Thread)
	for _, m := range mine {
		other := m.Counterparty(profileID)
		t, ok := byCounterparty[other]
		if !ok {
			t = &message.Thread{CounterpartyID: other}
			byCounterparty[other] = t
		}
		t.LastMessage = m // sorted oldest first
		if m.RecipientID == profileID && !m.IsRead() {
			t.Unread++
		}
	}

	threads := make([]message.Thread, 0, len(byCounterparty))
	for _, t := range byCounterparty {
		threads = append(threads, *t)
	}
	sort.SliceStable(threads, func(i, j int) bool {
		a, b := threads[i].LastMessage, threads[j].LastMessage
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return threads, nil
}

func (repo *messageRepository) MarkRead(ctx context.Context, recipientID string, ids []string, at time.Time, exec ...core.DBExecutor) (int, error) {
	tbl := repo.db.messages
	tbl.Lock()
	defer tbl.Unlock()

	var n int
	for _, id := range ids {
		m, ok := tbl.t[id]
		if !ok || m.RecipientID != recipientID || m.IsRead() {
			continue
		}
		at := at.UTC()
		m.ReadAt = &at
		tbl.t[id] = m
		n++
	}
	return n, nil
}

func (repo *messageRepository) CountUnread(ctx context.Context, recipientID string, exec ...core.DBExecutor) (int, error) {
	tbl := repo.db.messages
	tbl.RLock()
	defer tbl.RUnlock()

	var n int
	for _, m := range tbl.t {
		if m.RecipientID == recipientID && !m.IsRead() {
			n++
		}
	}
	return n, nil
}
