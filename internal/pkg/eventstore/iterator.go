package eventstore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/PayDemo/app/models"
	"github.com/ManuelReschke/PayDemo/app/repository"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Iterator walks a filtered listing lazily. Use it like sql.Rows:
//
//	for it.Next() {
//		ev := it.Event()
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator struct {
	ctx       context.Context
	repo      repository.WebhookEventRepository
	filter    repository.WebhookEventFilter
	after     *repository.WebhookEventCursor
	batchSize int

	buf  []models.WebhookEvent
	cur  *models.WebhookEvent
	done bool
	err  error
}

// Next advances to the next record, fetching a new batch when needed.
func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}
	if len(it.buf) == 0 {
		if it.done {
			it.cur = nil
			return false
		}
		if err := it.ctx.Err(); err != nil {
			it.err = err
			return false
		}
		batch, err := it.repo.List(it.ctx, it.filter, it.after, it.batchSize)
		if err != nil {
			it.err = err
			return false
		}
		if len(batch) < it.batchSize {
			it.done = true
		}
		if len(batch) == 0 {
			it.cur = nil
			return false
		}
		it.buf = batch
	}

	ev := it.buf[0]
	it.buf = it.buf[1:]
	it.cur = &ev
	it.after = &repository.WebhookEventCursor{ReceivedAt: ev.ReceivedAt, ID: ev.ID}
	return true
}

// Event returns the current record.
func (it *Iterator) Event() *models.WebhookEvent {
	return it.cur
}

// Err returns the error that stopped iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Cursor returns a token that resumes iteration after the current record.
func (it *Iterator) Cursor() string {
	if it.after == nil {
		return ""
	}
	return EncodeCursor(*it.after)
}

// EncodeCursor turns a keyset position into an opaque token.
func EncodeCursor(c repository.WebhookEventCursor) string {
	raw := fmt.Sprintf("%d:%d", c.ReceivedAt.UTC().UnixNano(), c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token from EncodeCursor. An empty token yields nil.
func DecodeCursor(token string) (*repository.WebhookEventCursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return nil, ErrInvalidCursor
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	id, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return &repository.WebhookEventCursor{ReceivedAt: time.Unix(0, nanos).UTC(), ID: uint(id)}, nil
}
