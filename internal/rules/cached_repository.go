package rules

import (
	"context"
	"errors"
	"time"

	"replybot/pkg/cache"
)

// CachedRepository serves rules and conversations from TTL caches in front
// of another Repository. Unknown conversations are cached too.
type CachedRepository struct {
	rules         *cache.Loader[[]Rule]
	conversations *cache.Loader[*Conversation]
}

func NewCachedRepository(repo Repository, ttl time.Duration) *CachedRepository {
	return &CachedRepository{
		rules: cache.NewLoader("rules", ttl, func(ctx context.Context, conversationID string) ([]Rule, error) {
			rules, err := repo.ListEnabledRules(ctx, conversationID)
			if err != nil {
				return nil, err
			}
			return orderRules(rules), nil
		}),
		conversations: cache.NewLoader("conversations", ttl, func(ctx context.Context, id string) (*Conversation, error) {
			c, err := repo.GetConversation(ctx, id)
			if errors.Is(err, ErrConversationNotFound) {
				return nil, nil
			}
			return c, err
		}),
	}
}

func (r *CachedRepository) ListEnabledRules(ctx context.Context, conversationID string) ([]Rule, error) {
	return r.rules.Get(ctx, conversationID)
}

func (r *CachedRepository) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	c, err := r.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrConversationNotFound
	}
	return c, nil
}

// InvalidateConversation drops the conversation and its rule list.
func (r *CachedRepository) InvalidateConversation(conversationID string) {
	r.conversations.Invalidate(conversationID)
	r.rules.Invalidate(conversationID)
}

func (r *CachedRepository) InvalidateRules(conversationID string) {
	if conversationID == "" {
		r.rules.InvalidateAll()
		return
	}
	r.rules.Invalidate(conversationID)
}

func (r *CachedRepository) InvalidateAll() {
	r.rules.InvalidateAll()
	r.conversations.InvalidateAll()
}
