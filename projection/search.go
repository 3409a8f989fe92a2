// Package projection builds read models from dispatched events.
// Projections consume the event stream; they never emit events and are
// rebuildable from the log.
package projection

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/blugelabs/bluge"

	"chat-notify/domain"
	"chat-notify/domain/event"
)

// SearchIndex is a permanent sink feeding a Bluge full-text index with
// every message_added event. Other event kinds pass through untouched.
type SearchIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewSearchIndex(writer *bluge.Writer, log *slog.Logger) *SearchIndex {
	return &SearchIndex{writer: writer, log: log}
}

func (s *SearchIndex) Consume(_ context.Context, e event.ChangeEvent) error {
	p, ok := e.Payload.(event.MessagePayload)
	if !ok {
		return nil
	}

	doc := bluge.NewDocument(strconv.FormatInt(int64(p.Message.ID), 10)).
		AddField(bluge.NewTextField("content", p.Message.Content).StoreValue()).
		AddField(bluge.NewKeywordField("chat", strconv.FormatInt(int64(p.Message.ChatID), 10)).StoreValue()).
		AddField(bluge.NewKeywordField("sender", strconv.FormatInt(int64(p.Message.SenderID), 10)).StoreValue())

	return s.writer.Update(doc.ID(), doc)
}

// Hit is one search result; Content comes back from stored fields.
type Hit struct {
	MessageID domain.MessageID
	ChatID    domain.ChatID
	SenderID  domain.UserID
	Content   string
}

// Search finds messages of one chat matching terms, best first.
func (s *SearchIndex) Search(ctx context.Context, chatID domain.ChatID, terms string, limit int) ([]Hit, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("open index reader: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("content")).
		AddMust(bluge.NewTermQuery(strconv.FormatInt(int64(chatID), 10)).SetField("chat"))

	iter, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for {
		match, err := iter.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}

		var hit Hit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				id, convErr := strconv.ParseInt(string(value), 10, 64)
				if convErr == nil {
					hit.MessageID = domain.MessageID(id)
				}
			case "chat":
				id, convErr := strconv.ParseInt(string(value), 10, 64)
				if convErr == nil {
					hit.ChatID = domain.ChatID(id)
				}
			case "sender":
				id, convErr := strconv.ParseInt(string(value), 10, 64)
				if convErr == nil {
					hit.SenderID = domain.UserID(id)
				}
			case "content":
				hit.Content = string(value)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
