package table

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrTableExists    = errors.New("table already exists")
	ErrTableNotFound  = errors.New("table does not exist")
	ErrEntityNotFound = errors.New("entity does not exist")
	ErrInvalidName    = errors.New("invalid table name")
	ErrInvalidKey     = errors.New("invalid entity key")
)

// Entity is a table row: PartitionKey, RowKey, Timestamp and user properties.
type Entity map[string]any

// TableInfo is one entry of a table listing.
type TableInfo struct {
	TableName string `json:"TableName"`
}

// TableStore defines the storage backend behind the table service.
type TableStore interface {
	CreateTable(ctx context.Context, account, name string) error
	DeleteTable(ctx context.Context, account, name string) error
	ListTables(ctx context.Context, account, prefix string) ([]TableInfo, error)

	// UpsertEntity stores props under (pk, rk), replacing any existing entity.
	UpsertEntity(ctx context.Context, account, name, pk, rk string, props map[string]any) (Entity, error)
	GetEntity(ctx context.Context, account, name, pk, rk string) (Entity, error)
	DeleteEntity(ctx context.Context, account, name, pk, rk string) error
	// QueryEntities returns entities ordered by PartitionKey then RowKey. An
	// empty partitionKey matches every partition; top <= 0 means no limit.
	QueryEntities(ctx context.Context, account, name, partitionKey string, top int) ([]Entity, error)
}

type entityKey struct {
	pk, rk string
}

// MemoryTableStore keeps tables in memory, scoped per account.
type MemoryTableStore struct {
	mu     sync.RWMutex
	tables map[string]map[string]map[entityKey]Entity
	now    func() time.Time
}

// NewMemoryTableStore returns an empty store. A nil clock means time.Now.
func NewMemoryTableStore(now func() time.Time) *MemoryTableStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryTableStore{
		tables: make(map[string]map[string]map[entityKey]Entity),
		now:    now,
	}
}

// ValidName reports whether name is a legal table name: 3-63 alphanumeric
// characters starting with a letter.
func ValidName(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	for i, r := range name {
		letter := r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
		digit := r >= '0' && r <= '9'
		if !letter && (i == 0 || !digit) {
			return false
		}
	}
	return true
}

func validKey(k string) bool {
	return k != "" && !strings.ContainsAny(k, `/\#?`)
}

// rows returns the entity map of a table. The caller holds mu.
func (s *MemoryTableStore) rows(account, name string) (map[entityKey]Entity, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidName, name)
	}
	rows, ok := s.tables[account][strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return rows, nil
}

func (s *MemoryTableStore) CreateTable(ctx context.Context, account, name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %s", ErrInvalidName, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tables[account] == nil {
		s.tables[account] = make(map[string]map[entityKey]Entity)
	}
	key := strings.ToLower(name)
	if _, ok := s.tables[account][key]; ok {
		return fmt.Errorf("%w: %s", ErrTableExists, name)
	}
	s.tables[account][key] = make(map[entityKey]Entity)
	return nil
}

func (s *MemoryTableStore) DeleteTable(ctx context.Context, account, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.rows(account, name); err != nil {
		return err
	}
	delete(s.tables[account], strings.ToLower(name))
	return nil
}

func (s *MemoryTableStore) ListTables(ctx context.Context, account, prefix string) ([]TableInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []TableInfo{}
	for name := range s.tables[account] {
		if strings.HasPrefix(name, strings.ToLower(prefix)) {
			results = append(results, TableInfo{TableName: name})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].TableName < results[j].TableName })
	return results, nil
}

func (s *MemoryTableStore) UpsertEntity(ctx context.Context, account, name, pk, rk string, props map[string]any) (Entity, error) {
	if !validKey(pk) || !validKey(rk) {
		return nil, fmt.Errorf("%w: %q/%q", ErrInvalidKey, pk, rk)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.rows(account, name)
	if err != nil {
		return nil, err
	}
	entity := make(Entity, len(props)+3)
	for k, v := range props {
		entity[k] = v
	}
	entity["PartitionKey"] = pk
	entity["RowKey"] = rk
	entity["Timestamp"] = s.now().UTC().Format(time.RFC3339Nano)
	rows[entityKey{pk, rk}] = entity
	return entity.clone(), nil
}

func (s *MemoryTableStore) GetEntity(ctx context.Context, account, name, pk, rk string) (Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.rows(account, name)
	if err != nil {
		return nil, err
	}
	entity, ok := rows[entityKey{pk, rk}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrEntityNotFound, pk, rk)
	}
	return entity.clone(), nil
}

func (s *MemoryTableStore) DeleteEntity(ctx context.Context, account, name, pk, rk string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.rows(account, name)
	if err != nil {
		return err
	}
	key := entityKey{pk, rk}
	if _, ok := rows[key]; !ok {
		return fmt.Errorf("%w: %s/%s", ErrEntityNotFound, pk, rk)
	}
	delete(rows, key)
	return nil
}

func (s *MemoryTableStore) QueryEntities(ctx context.Context, account, name, partitionKey string, top int) ([]Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.rows(account, name)
	if err != nil {
		return nil, err
	}
	keys := make([]entityKey, 0, len(rows))
	for k := range rows {
		if partitionKey == "" || k.pk == partitionKey {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].pk != keys[j].pk {
			return keys[i].pk < keys[j].pk
		}
		return keys[i].rk < keys[j].rk
	})
	if top > 0 && len(keys) > top {
		keys = keys[:top]
	}

	results := make([]Entity, 0, len(keys))
	for _, k := range keys {
		results = append(results, rows[k].clone())
	}
	return results, nil
}

func (e Entity) clone() Entity {
	out := make(Entity, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}
