package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"people-store/core"

	"github.com/oklog/ulid/v2"
	rdb "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const maxTxRetries = 8

var errConflict = errors.New("too many concurrent modifications")

// documentStore keeps each person as a JSON string under <prefix>:<id> and
// the ids in a sorted set so listings come back in creation order.
type documentStore struct {
	client *rdb.Client
	prefix string
}

func NewDocumentStore(ctx context.Context, addr string, db int, prefix string) (core.PersonStore, error) {
	client := rdb.NewClient(&rdb.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", addr, err)
	}
	return &documentStore{client: client, prefix: prefix}, nil
}

func (s *documentStore) key(id string) string {
	return s.prefix + ":" + id
}

func (s *documentStore) idsKey() string {
	return s.prefix + ":_ids"
}

func encode(p core.Person) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode person: %w", err)
	}
	return string(data), nil
}

func decode(data string) (*core.Person, error) {
	var p core.Person
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to decode person: %w", err)
	}
	p = p.Clone()
	return &p, nil
}

// reader is satisfied by both *rdb.Client and *rdb.Tx.
type reader interface {
	Get(ctx context.Context, key string) *rdb.StringCmd
	MGet(ctx context.Context, keys ...string) *rdb.SliceCmd
	ZRange(ctx context.Context, key string, start, stop int64) *rdb.StringSliceCmd
}

func (s *documentStore) get(ctx context.Context, c reader, id string) (*core.Person, error) {
	data, err := c.Get(ctx, s.key(id)).Result()
	if err != nil {
		if errors.Is(err, rdb.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return decode(data)
}

func (s *documentStore) list(ctx context.Context, c reader) ([]core.Person, error) {
	ids, err := c.ZRange(ctx, s.idsKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []core.Person{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	values, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	people := make([]core.Person, 0, len(values))
	for _, v := range values {
		data, ok := v.(string)
		if !ok {
			continue
		}
		p, err := decode(data)
		if err != nil {
			return nil, err
		}
		people = append(people, *p)
	}
	return people, nil
}

func (s *documentStore) insert(ctx context.Context, people []core.Person) error {
	_, err := s.client.TxPipelined(ctx, func(pipe rdb.Pipeliner) error {
		for _, p := range people {
			data, err := encode(p)
			if err != nil {
				return err
			}
			pipe.Set(ctx, s.key(p.ID), data, 0)
			pipe.ZAdd(ctx, s.idsKey(), rdb.Z{Score: 0, Member: p.ID})
		}
		return nil
	})
	return err
}

// watch runs fn in an optimistic transaction over keys, retrying when a
// watched key changes underneath it.
func (s *documentStore) watch(ctx context.Context, fn func(tx *rdb.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, rdb.TxFailedErr) {
			return err
		}
	}
	return errConflict
}

func (s *documentStore) Create(ctx context.Context, person *core.Person) (*core.Person, error) {
	if err := person.Validate(); err != nil {
		return nil, err
	}
	saved := person.Normalize(ulid.Make().String())
	log := logrus.WithFields(logrus.Fields{"person_id": saved.ID, "name": saved.Name})

	if err := s.insert(ctx, []core.Person{saved}); err != nil {
		log.WithField("error", err).Error("Failed to create person")
		return nil, err
	}
	log.Debug("Person created")
	return &saved, nil
}

func (s *documentStore) CreateMany(ctx context.Context, people []core.Person) ([]core.Person, error) {
	if err := core.ValidateAll(people); err != nil {
		return nil, err
	}
	out := make([]core.Person, 0, len(people))
	for _, p := range people {
		out = append(out, p.Normalize(ulid.Make().String()))
	}
	if len(out) == 0 {
		return out, nil
	}
	if err := s.insert(ctx, out); err != nil {
		logrus.WithField("error", err).Error("Failed to create people")
		return nil, err
	}
	return out, nil
}

func (s *documentStore) FindID(ctx context.Context, id string) (*core.Person, error) {
	logrus.WithField("person_id", id).Debug("Retrieving person by ID")
	return s.get(ctx, s.client, id)
}

func (s *documentStore) Find(ctx context.Context, query core.Query) ([]core.Person, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	all, err := s.list(ctx, s.client)
	if err != nil {
		logrus.WithField("error", err).Error("Failed to find people")
		return nil, err
	}
	return query.Apply(all), nil
}

func (s *documentStore) FindOne(ctx context.Context, query core.Query) (*core.Person, error) {
	query.Limit = 1
	found, err := s.Find(ctx, query)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return &found[0], nil
}

func (s *documentStore) Save(ctx context.Context, person *core.Person) (*core.Person, error) {
	if err := person.Validate(); err != nil {
		return nil, err
	}
	saved := person.Normalize(person.ID)
	data, err := encode(saved)
	if err != nil {
		return nil, err
	}

	key := s.key(saved.ID)
	err = s.watch(ctx, func(tx *rdb.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("save person with id %s: %w", saved.ID, core.ErrNotFound)
		}
		_, err = tx.TxPipelined(ctx, func(pipe rdb.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *documentStore) FindOneAndUpdate(ctx context.Context, query core.Query, update core.Update) (*core.Person, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	query.Limit = 1

	var updated *core.Person
	err := s.watch(ctx, func(tx *rdb.Tx) error {
		updated = nil
		all, err := s.list(ctx, tx)
		if err != nil {
			return err
		}
		found := query.Apply(all)
		if len(found) == 0 {
			return nil
		}
		key := s.key(found[0].ID)
		if err := tx.Watch(ctx, key).Err(); err != nil {
			return err
		}
		// Re-read after watching so the update applies to what the
		// transaction guards.
		target, err := s.get(ctx, tx, found[0].ID)
		if err != nil {
			return err
		}
		if target == nil || !query.Matches(*target) {
			return rdb.TxFailedErr
		}
		update.Apply(target)
		data, err := encode(*target)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe rdb.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			updated = target
		}
		return err
	}, s.idsKey())
	if err != nil {
		logrus.WithField("error", err).Error("Failed to update person")
		return nil, err
	}
	if updated != nil && query.ExcludeAge {
		updated.Age = nil
	}
	return updated, nil
}

func (s *documentStore) DeleteID(ctx context.Context, id string) (*core.Person, error) {
	var removed *core.Person
	key := s.key(id)
	err := s.watch(ctx, func(tx *rdb.Tx) error {
		p, err := s.get(ctx, tx, id)
		if err != nil || p == nil {
			removed = nil
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe rdb.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, s.idsKey(), id)
			return nil
		})
		removed = p
		return err
	}, key)
	if err != nil {
		logrus.WithFields(logrus.Fields{"person_id": id, "error": err}).Error("Failed to delete person")
		return nil, err
	}
	return removed, nil
}

func (s *documentStore) DeleteMany(ctx context.Context, query core.Query) (*core.DeleteResult, error) {
	all, err := s.list(ctx, s.client)
	if err != nil {
		return nil, err
	}
	var dels []*rdb.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe rdb.Pipeliner) error {
		for _, p := range all {
			if !query.Matches(p) {
				continue
			}
			dels = append(dels, pipe.Del(ctx, s.key(p.ID)))
			pipe.ZRem(ctx, s.idsKey(), p.ID)
		}
		return nil
	})
	if err != nil {
		logrus.WithField("error", err).Error("Failed to delete people")
		return nil, err
	}
	res := &core.DeleteResult{}
	for _, cmd := range dels {
		res.DeletedCount += cmd.Val()
	}
	return res, nil
}

func (s *documentStore) Close(ctx context.Context) error {
	return s.client.Close()
}
