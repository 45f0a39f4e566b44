package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultMessageTTL is how long a message lives when no TTL is given.
	DefaultMessageTTL = 7 * 24 * time.Hour
	// DefaultVisibilityTimeout hides a received message for this long.
	DefaultVisibilityTimeout = 30 * time.Second
	// MaxMessagesPerGet bounds numofmessages.
	MaxMessagesPerGet = 32
)

var (
	ErrQueueNotFound      = errors.New("queue does not exist")
	ErrMessageNotFound    = errors.New("message does not exist")
	ErrPopReceiptMismatch = errors.New("pop receipt does not match")
	ErrInvalidName        = errors.New("invalid queue name")
)

// QueueStore defines the storage backend behind the queue service.
type QueueStore interface {
	// CreateQueue reports false when the queue already existed.
	CreateQueue(ctx context.Context, account, name string) (bool, error)
	DeleteQueue(ctx context.Context, account, name string) error
	ListQueues(ctx context.Context, account, prefix string) ([]QueueInfo, error)

	PutMessage(ctx context.Context, account, name, text string, visibilityTimeout, ttl time.Duration) (*Message, error)
	// GetMessages dequeues up to n visible messages and hides them for visibilityTimeout.
	GetMessages(ctx context.Context, account, name string, n int, visibilityTimeout time.Duration) ([]Message, error)
	PeekMessages(ctx context.Context, account, name string, n int) ([]Message, error)
	DeleteMessage(ctx context.Context, account, name, messageID, popReceipt string) error
	ClearMessages(ctx context.Context, account, name string) error
}

// MemoryQueueStore keeps queues in memory. Messages are ordered by insertion.
type MemoryQueueStore struct {
	mu     sync.Mutex
	queues map[string]map[string][]*Message
	now    func() time.Time
}

// NewMemoryQueueStore returns an empty store. A nil clock means time.Now.
func NewMemoryQueueStore(now func() time.Time) *MemoryQueueStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryQueueStore{
		queues: make(map[string]map[string][]*Message),
		now:    now,
	}
}

// ValidName reports whether name is a legal queue name: 3-63 characters of
// lowercase letters, digits and single hyphens, not starting or ending with a hyphen.
func ValidName(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if name[0] == '-' || name[len(name)-1] == '-' || strings.Contains(name, "--") {
		return false
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
			return false
		}
	}
	return true
}

// lookup returns the message slice of a queue. The caller holds mu.
func (s *MemoryQueueStore) lookup(account, name string) ([]*Message, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidName, name)
	}
	msgs, ok := s.queues[account][name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrQueueNotFound, name)
	}
	return msgs, nil
}

// purge drops expired messages. The caller holds mu.
func (s *MemoryQueueStore) purge(account, name string, now time.Time) []*Message {
	msgs := s.queues[account][name]
	kept := msgs[:0]
	for _, m := range msgs {
		if m.ExpirationTime.After(now) {
			kept = append(kept, m)
		}
	}
	for i := len(kept); i < len(msgs); i++ {
		msgs[i] = nil
	}
	s.queues[account][name] = kept
	return kept
}

func (s *MemoryQueueStore) CreateQueue(ctx context.Context, account, name string) (bool, error) {
	if !ValidName(name) {
		return false, fmt.Errorf("%w: %s", ErrInvalidName, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queues[account] == nil {
		s.queues[account] = make(map[string][]*Message)
	}
	if _, ok := s.queues[account][name]; ok {
		return false, nil
	}
	s.queues[account][name] = []*Message{}
	return true, nil
}

func (s *MemoryQueueStore) DeleteQueue(ctx context.Context, account, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(account, name); err != nil {
		return err
	}
	delete(s.queues[account], name)
	return nil
}

func (s *MemoryQueueStore) ListQueues(ctx context.Context, account, prefix string) ([]QueueInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := []QueueInfo{}
	for name := range s.queues[account] {
		if strings.HasPrefix(name, prefix) {
			results = append(results, QueueInfo{Name: name})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results, nil
}

func (s *MemoryQueueStore) PutMessage(ctx context.Context, account, name, text string, visibilityTimeout, ttl time.Duration) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.lookup(account, name)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultMessageTTL
	}
	now := s.now().UTC()
	m := &Message{
		MessageID:       uuid.NewString(),
		InsertionTime:   now,
		ExpirationTime:  now.Add(ttl),
		PopReceipt:      uuid.NewString(),
		TimeNextVisible: now.Add(visibilityTimeout),
		MessageText:     text,
	}
	s.queues[account][name] = append(msgs, m)

	out := *m
	return &out, nil
}

func (s *MemoryQueueStore) GetMessages(ctx context.Context, account, name string, n int, visibilityTimeout time.Duration) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(account, name); err != nil {
		return nil, err
	}
	if visibilityTimeout <= 0 {
		visibilityTimeout = DefaultVisibilityTimeout
	}
	now := s.now().UTC()

	results := []Message{}
	for _, m := range s.purge(account, name, now) {
		if len(results) == n {
			break
		}
		if m.TimeNextVisible.After(now) {
			continue
		}
		m.DequeueCount++
		m.PopReceipt = uuid.NewString()
		m.TimeNextVisible = now.Add(visibilityTimeout)
		results = append(results, *m)
	}
	return results, nil
}

func (s *MemoryQueueStore) PeekMessages(ctx context.Context, account, name string, n int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(account, name); err != nil {
		return nil, err
	}
	now := s.now().UTC()

	results := []Message{}
	for _, m := range s.purge(account, name, now) {
		if len(results) == n {
			break
		}
		if m.TimeNextVisible.After(now) {
			continue
		}
		peeked := *m
		peeked.PopReceipt = ""
		peeked.TimeNextVisible = time.Time{}
		results = append(results, peeked)
	}
	return results, nil
}

func (s *MemoryQueueStore) DeleteMessage(ctx context.Context, account, name, messageID, popReceipt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.lookup(account, name)
	if err != nil {
		return err
	}
	for i, m := range msgs {
		if m.MessageID != messageID {
			continue
		}
		if m.PopReceipt != popReceipt {
			return fmt.Errorf("%w: %s", ErrPopReceiptMismatch, messageID)
		}
		s.queues[account][name] = append(msgs[:i], msgs[i+1:]...)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
}

func (s *MemoryQueueStore) ClearMessages(ctx context.Context, account, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(account, name); err != nil {
		return err
	}
	s.queues[account][name] = []*Message{}
	return nil
}
