package storage

import (
	"context"
	"log/slog"

	"github.com/blugelabs/bluge"

	"wavelength/domain/chat"
)

// SearchHit is one full-text match with the stored fields needed to
// render a result without a second lookup.
type SearchHit struct {
	MessageID      string  `json:"messageId"`
	ConversationID string  `json:"conversationId"`
	SenderID       string  `json:"senderId"`
	Content        string  `json:"content"`
	Score          float64 `json:"score"`
}

// SearchIndex maintains a Bluge full-text index over message contents.
// Indexing happens after the durable write so a crash between the two
// loses at most search visibility, never the message itself.
type SearchIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewSearchIndex(writer *bluge.Writer, log *slog.Logger) *SearchIndex {
	return &SearchIndex{writer: writer, log: log}
}

func (s *SearchIndex) IndexMessage(message chat.Message) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewTextField("content", message.Content).StoreValue()).
		AddField(bluge.NewKeywordField("conversation_id", string(message.ConversationID)).StoreValue()).
		AddField(bluge.NewKeywordField("sender_id", message.Sender.ID).StoreValue()).
		AddField(bluge.NewDateTimeField("created_at", message.CreatedAt))
	return s.writer.Update(doc.ID(), doc)
}

// Search runs a match query scoped to one conversation, best score first.
func (s *SearchIndex) Search(ctx context.Context, conversationID chat.ConversationID, terms string, limit int) ([]SearchHit, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			s.log.Warn("failed to close index reader", slog.Any("error", err))
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("content")).
		AddMust(bluge.NewTermQuery(string(conversationID)).SetField("conversation_id"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, limit)
	match, err := iterator.Next()
	for err == nil && match != nil {
		hit := SearchHit{Score: match.Score}
		if visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "content":
				hit.Content = string(value)
			case "conversation_id":
				hit.ConversationID = string(value)
			case "sender_id":
				hit.SenderID = string(value)
			}
			return true
		}); visitErr != nil {
			return nil, visitErr
		}
		hits = append(hits, hit)
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, err
	}
	return hits, nil
}
