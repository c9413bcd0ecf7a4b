package prefs

import (
	"context"
	"fmt"
	"maps"
	"strconv"

	"github.com/odyssey-erp/admingrid/internal/shared"
)

// DefaultNamespace prefixes preference keys when the host sets none.
const DefaultNamespace = "grid"

// Store persists preference bags keyed by entity. Writes overwrite whole
// fields; the last write wins.
type Store interface {
	// All returns the saved bag; ok is false when nothing was ever saved.
	All(ctx context.Context, entity string) (bag Bag, ok bool, err error)
	Get(ctx context.Context, entity, key string, fallback any) (any, error)
	Set(ctx context.Context, entity, key string, value any) error
	SetMany(ctx context.Context, entity string, values map[string]any) error
	Has(ctx context.Context, entity, key string) (bool, error)
	Forget(ctx context.Context, entity, key string) error
	Clear(ctx context.Context, entity string) error
	// Kind names the backing store for logs and metrics.
	Kind() string
}

// backing is what a concrete store provides: reading one bag and replacing it.
type backing interface {
	load(ctx context.Context, key string) (Bag, bool, error)
	save(ctx context.Context, key string, bag Bag) error
	remove(ctx context.Context, key string) error
}

type store struct {
	kind      string
	namespace string
	data      backing
}

func newStore(kind, namespace string, data backing) *store {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &store{kind: kind, namespace: namespace, data: data}
}

func (s *store) key(entity string) string {
	return s.namespace + "." + entity
}

func (s *store) Kind() string { return s.kind }

func (s *store) All(ctx context.Context, entity string) (Bag, bool, error) {
	bag, ok, err := s.data.load(ctx, s.key(entity))
	if err != nil {
		return nil, false, fmt.Errorf("prefs: load %s: %w", entity, err)
	}
	return bag, ok, nil
}

func (s *store) Get(ctx context.Context, entity, key string, fallback any) (any, error) {
	bag, _, err := s.All(ctx, entity)
	if err != nil {
		return fallback, err
	}
	if v, ok := bag[key]; ok {
		return v, nil
	}
	return fallback, nil
}

func (s *store) Set(ctx context.Context, entity, key string, value any) error {
	return s.SetMany(ctx, entity, map[string]any{key: value})
}

func (s *store) SetMany(ctx context.Context, entity string, values map[string]any) error {
	for key := range values {
		if err := checkKey(key); err != nil {
			return err
		}
	}
	bag, _, err := s.All(ctx, entity)
	if err != nil {
		return err
	}
	bag = bag.Clone()
	maps.Copy(bag, values)
	if err := s.data.save(ctx, s.key(entity), bag); err != nil {
		return fmt.Errorf("prefs: save %s: %w", entity, err)
	}
	return nil
}

func (s *store) Has(ctx context.Context, entity, key string) (bool, error) {
	bag, _, err := s.All(ctx, entity)
	if err != nil {
		return false, err
	}
	_, ok := bag[key]
	return ok, nil
}

func (s *store) Forget(ctx context.Context, entity, key string) error {
	bag, ok, err := s.All(ctx, entity)
	if err != nil || !ok {
		return err
	}
	if _, present := bag[key]; !present {
		return nil
	}
	bag = bag.Clone()
	delete(bag, key)
	if err := s.data.save(ctx, s.key(entity), bag); err != nil {
		return fmt.Errorf("prefs: save %s: %w", entity, err)
	}
	return nil
}

func (s *store) Clear(ctx context.Context, entity string) error {
	if err := s.data.remove(ctx, s.key(entity)); err != nil {
		return fmt.Errorf("prefs: clear %s: %w", entity, err)
	}
	return nil
}

// NewSessionStore keeps bags as JSON values of the visitor's session under
// "<namespace>.<entity>". The session is persisted by the session middleware.
func NewSessionStore(sess *shared.Session, namespace string) Store {
	return newStore("session", namespace, sessionBacking{sess: sess})
}

type sessionBacking struct {
	sess *shared.Session
}

func (b sessionBacking) load(_ context.Context, key string) (Bag, bool, error) {
	if b.sess == nil {
		return Bag{}, false, nil
	}
	var bag Bag
	ok, err := b.sess.GetJSON(key, &bag)
	if err != nil || !ok {
		return Bag{}, false, err
	}
	return bag, true, nil
}

func (b sessionBacking) save(_ context.Context, key string, bag Bag) error {
	if b.sess == nil {
		return shared.ErrSessionMissing
	}
	return b.sess.SetJSON(key, bag)
}

func (b sessionBacking) remove(_ context.Context, key string) error {
	if b.sess != nil {
		b.sess.Delete(key)
	}
	return nil
}

// DocumentRepository reads and updates a user's preference document.
type DocumentRepository interface {
	Document(ctx context.Context, userID int64) (map[string]any, error)
	UpdateDocument(ctx context.Context, userID int64, fn func(doc map[string]any) error) error
}

// NewUserStore merges bags into the user's durable preference document under
// "<namespace>.<entity>".
func NewUserStore(repo DocumentRepository, userID int64, namespace string) Store {
	return newStore("user", namespace, userBacking{repo: repo, userID: userID})
}

type userBacking struct {
	repo   DocumentRepository
	userID int64
}

func (b userBacking) load(ctx context.Context, key string) (Bag, bool, error) {
	doc, err := b.repo.Document(ctx, b.userID)
	if err != nil {
		return nil, false, err
	}
	raw, ok := doc[key].(map[string]any)
	if !ok {
		return Bag{}, false, nil
	}
	return Bag(raw), true, nil
}

func (b userBacking) save(ctx context.Context, key string, bag Bag) error {
	return b.repo.UpdateDocument(ctx, b.userID, func(doc map[string]any) error {
		doc[key] = map[string]any(bag)
		return nil
	})
}

func (b userBacking) remove(ctx context.Context, key string) error {
	return b.repo.UpdateDocument(ctx, b.userID, func(doc map[string]any) error {
		delete(doc, key)
		return nil
	})
}

// ForSession picks the user store for signed-in sessions and the session
// store for guests.
func ForSession(sess *shared.Session, users DocumentRepository, namespace string) Store {
	if sess != nil && users != nil {
		if id, err := strconv.ParseInt(sess.User(), 10, 64); err == nil && id > 0 {
			return NewUserStore(users, id, namespace)
		}
	}
	return NewSessionStore(sess, namespace)
}
