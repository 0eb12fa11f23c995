//go:generate go run go.uber.org/mock/mockgen -source=conversation_repository.go -destination=../../mocks/mock_conversation_repository.go -package=mocks
package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	stderrors "errors"

	"wavelength/domain/chat"
	"wavelength/errors"
)

type IConversationRepository interface {
	CreateConversation(conversation chat.Conversation, members []chat.Member) error
	GetConversation(conversationID chat.ConversationID) (chat.Conversation, error)
	FindDirect(userA, userB string) (*chat.Conversation, error)
	GetMember(conversationID chat.ConversationID, userID string) (chat.Member, error)
	ListMembers(conversationID chat.ConversationID) ([]chat.Member, error)
	ListConversationsOf(userID string) ([]chat.Conversation, error)
	SetLastMessage(conversationID chat.ConversationID, messageID string, at time.Time) error
	SetLastRead(conversationID chat.ConversationID, userID, messageID string) error
}

// ConversationRepository stores conversations and memberships in BadgerDB
// under three keyspaces:
//
//	conv:{conversation_id}           -> conversation JSON
//	member:{conversation_id}:{user}  -> member JSON
//	usermember:{user}:{conversation} -> empty (reverse index for listing)
//	direct:{min_user}:{max_user}     -> conversation id (direct-chat dedup)
type ConversationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewConversationRepository(db *badger.DB, log *slog.Logger) ConversationRepository {
	return ConversationRepository{db: db, log: log}
}

func conversationKey(id chat.ConversationID) []byte {
	return []byte(fmt.Sprintf("conv:%s", id))
}

func memberKey(id chat.ConversationID, userID string) []byte {
	return []byte(fmt.Sprintf("member:%s:%s", id, userID))
}

func userMemberKey(userID string, id chat.ConversationID) []byte {
	return []byte(fmt.Sprintf("usermember:%s:%s", userID, id))
}

// directKey orders the pair so both participants resolve to the same key.
func directKey(userA, userB string) []byte {
	if userB < userA {
		userA, userB = userB, userA
	}
	return []byte(fmt.Sprintf("direct:%s:%s", userA, userB))
}

func (c ConversationRepository) CreateConversation(conversation chat.Conversation, members []chat.Member) error {
	convBytes, err := json.Marshal(conversation)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(conversationKey(conversation.ID), convBytes); err != nil {
			return err
		}
		for _, member := range members {
			memberBytes, err := json.Marshal(member)
			if err != nil {
				return err
			}
			if err := txn.Set(memberKey(conversation.ID, member.UserID), memberBytes); err != nil {
				return err
			}
			if err := txn.Set(userMemberKey(member.UserID, conversation.ID), nil); err != nil {
				return err
			}
		}
		if conversation.Type == chat.Direct && len(members) == 2 {
			key := directKey(members[0].UserID, members[1].UserID)
			if err := txn.Set(key, []byte(conversation.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c ConversationRepository) GetConversation(conversationID chat.ConversationID) (chat.Conversation, error) {
	var conversation chat.Conversation
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(conversationKey(conversationID))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrConversationMissing
		}
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &conversation)
		})
	})
	return conversation, err
}

// FindDirect returns the existing direct conversation between two users,
// or nil when none exists yet.
func (c ConversationRepository) FindDirect(userA, userB string) (*chat.Conversation, error) {
	var conversationID chat.ConversationID
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(directKey(userA, userB))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			conversationID = chat.ConversationID(value)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if conversationID == "" {
		return nil, nil
	}
	conversation, err := c.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (c ConversationRepository) GetMember(conversationID chat.ConversationID, userID string) (chat.Member, error) {
	var member chat.Member
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(memberKey(conversationID, userID))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrNotAMember
		}
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &member)
		})
	})
	if err != nil {
		return chat.Member{}, err
	}
	if !member.Active() {
		return chat.Member{}, errors.ErrNotAMember
	}
	return member, nil
}

func (c ConversationRepository) ListMembers(conversationID chat.ConversationID) ([]chat.Member, error) {
	var members []chat.Member
	err := c.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("member:%s:", conversationID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var member chat.Member
			if err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &member)
			}); err != nil {
				return err
			}
			if member.Active() {
				members = append(members, member)
			}
		}
		return nil
	})
	return members, err
}

func (c ConversationRepository) ListConversationsOf(userID string) ([]chat.Conversation, error) {
	var ids []chat.ConversationID
	err := c.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("usermember:%s:", userID)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, chat.ConversationID(it.Item().Key()[len(prefixStr):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	conversations := make([]chat.Conversation, 0, len(ids))
	for _, id := range ids {
		conversation, err := c.GetConversation(id)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conversation)
	}
	return conversations, nil
}

func (c ConversationRepository) SetLastMessage(conversationID chat.ConversationID, messageID string, at time.Time) error {
	return c.db.Update(func(txn *badger.Txn) error {
		conversation, err := getConversationTxn(txn, conversationID)
		if err != nil {
			return err
		}
		conversation.LastMessageID = messageID
		conversation.LastMessageAt = at
		bytes, err := json.Marshal(conversation)
		if err != nil {
			return err
		}
		return txn.Set(conversationKey(conversationID), bytes)
	})
}

func (c ConversationRepository) SetLastRead(conversationID chat.ConversationID, userID, messageID string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(memberKey(conversationID, userID))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrNotAMember
		}
		if err != nil {
			return err
		}
		var member chat.Member
		if err := item.Value(func(value []byte) error {
			return json.Unmarshal(value, &member)
		}); err != nil {
			return err
		}
		member.LastReadMessageID = messageID
		bytes, err := json.Marshal(member)
		if err != nil {
			return err
		}
		return txn.Set(memberKey(conversationID, userID), bytes)
	})
}

func getConversationTxn(txn *badger.Txn, conversationID chat.ConversationID) (chat.Conversation, error) {
	var conversation chat.Conversation
	item, err := txn.Get(conversationKey(conversationID))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return conversation, errors.ErrConversationMissing
	}
	if err != nil {
		return conversation, err
	}
	err = item.Value(func(value []byte) error {
		return json.Unmarshal(value, &conversation)
	})
	return conversation, err
}
