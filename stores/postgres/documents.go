package postgres

import (
	"context"
	"errors"
	"fmt"
	"people-store/core"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const schema = `CREATE TABLE IF NOT EXISTS people (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL CHECK (name <> ''),
	age BIGINT,
	favorite_foods TEXT[] NOT NULL DEFAULT '{}'
)`

const columns = "id, name, age, favorite_foods"

type documentStore struct {
	pool *pgxpool.Pool
}

func NewDocumentStore(ctx context.Context, databaseURL string) (core.PersonStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create people table: %w", err)
	}
	return &documentStore{pool: pool}, nil
}

func scanPerson(row pgx.Row) (*core.Person, error) {
	var (
		person core.Person
		age    *int64
	)
	if err := row.Scan(&person.ID, &person.Name, &age, &person.FavoriteFoods); err != nil {
		return nil, err
	}
	if age != nil {
		person.Age = core.IntPtr(int(*age))
	}
	person = person.Clone()
	return &person, nil
}

func ageValue(p core.Person) *int64 {
	if p.Age == nil {
		return nil
	}
	v := int64(*p.Age)
	return &v
}

// builder numbers positional parameters as they are added.
type builder struct {
	args []any
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *builder) where(q core.Query) string {
	var clauses []string
	if q.Name != nil {
		clauses = append(clauses, "name = "+b.arg(*q.Name))
	}
	if q.Food != nil {
		clauses = append(clauses, b.arg(*q.Food)+" = ANY(favorite_foods)")
	}
	if len(clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

func (b *builder) tail(q core.Query) string {
	dir, nulls := "ASC", "NULLS FIRST"
	if q.Descending {
		dir, nulls = "DESC", "NULLS LAST"
	}
	var out string
	switch q.SortBy {
	case core.SortByName:
		out = ` ORDER BY name COLLATE "C" ` + dir + ", id ASC"
	case core.SortByAge:
		out = " ORDER BY age " + dir + " " + nulls + ", id ASC"
	default:
		out = " ORDER BY id ASC"
	}
	if q.Limit > 0 {
		out += " LIMIT " + b.arg(q.Limit)
	}
	return out
}

func (s *documentStore) insert(ctx context.Context, tx pgx.Tx, person core.Person) error {
	_, err := tx.Exec(ctx,
		"INSERT INTO people ("+columns+") VALUES ($1, $2, $3, $4)",
		person.ID, person.Name, ageValue(person), person.FavoriteFoods)
	return err
}

func (s *documentStore) Create(ctx context.Context, person *core.Person) (*core.Person, error) {
	if err := person.Validate(); err != nil {
		return nil, err
	}
	saved := person.Normalize(ulid.Make().String())
	log := logrus.WithFields(logrus.Fields{"person_id": saved.ID, "name": saved.Name})

	_, err := s.pool.Exec(ctx,
		"INSERT INTO people ("+columns+") VALUES ($1, $2, $3, $4)",
		saved.ID, saved.Name, ageValue(saved), saved.FavoriteFoods)
	if err != nil {
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
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, p := range people {
			saved := p.Normalize(ulid.Make().String())
			if err := s.insert(ctx, tx, saved); err != nil {
				return err
			}
			out = append(out, saved)
		}
		return nil
	})
	if err != nil {
		logrus.WithField("error", err).Error("Failed to create people")
		return nil, err
	}
	return out, nil
}

func (s *documentStore) FindID(ctx context.Context, id string) (*core.Person, error) {
	log := logrus.WithField("person_id", id)
	log.Debug("Retrieving person by ID")

	person, err := scanPerson(s.pool.QueryRow(ctx, "SELECT "+columns+" FROM people WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		log.WithField("error", err).Error("Failed to retrieve person")
		return nil, err
	}
	return person, nil
}

func (s *documentStore) Find(ctx context.Context, query core.Query) ([]core.Person, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	b := &builder{}
	stmt := "SELECT " + columns + " FROM people" + b.where(query)
	stmt += b.tail(query)

	rows, err := s.pool.Query(ctx, stmt, b.args...)
	if err != nil {
		logrus.WithFields(logrus.Fields{"query": stmt, "error": err}).Error("Failed to find people")
		return nil, err
	}
	defer rows.Close()

	people := []core.Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		if query.ExcludeAge {
			p.Age = nil
		}
		people = append(people, *p)
	}
	return people, rows.Err()
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
	tag, err := s.pool.Exec(ctx,
		"UPDATE people SET name = $1, age = $2, favorite_foods = $3 WHERE id = $4",
		saved.Name, ageValue(saved), saved.FavoriteFoods, saved.ID)
	if err != nil {
		logrus.WithFields(logrus.Fields{"person_id": saved.ID, "error": err}).Error("Failed to save person")
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("save person with id %s: %w", saved.ID, core.ErrNotFound)
	}
	return &saved, nil
}

func (s *documentStore) FindOneAndUpdate(ctx context.Context, query core.Query, update core.Update) (*core.Person, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return s.FindOne(ctx, query)
	}
	query.Limit = 1
	b := &builder{}
	age := b.arg(int64(*update.Age))
	target := "SELECT id FROM people" + b.where(query)
	target += b.tail(query)
	// FOR UPDATE keeps a concurrent writer from changing the row between
	// selection and update.
	stmt := "UPDATE people SET age = " + age + " WHERE id = (" + target + " FOR UPDATE) RETURNING " + columns

	person, err := scanPerson(s.pool.QueryRow(ctx, stmt, b.args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		logrus.WithField("error", err).Error("Failed to update person")
		return nil, err
	}
	return person, nil
}

func (s *documentStore) DeleteID(ctx context.Context, id string) (*core.Person, error) {
	person, err := scanPerson(s.pool.QueryRow(ctx, "DELETE FROM people WHERE id = $1 RETURNING "+columns, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		logrus.WithFields(logrus.Fields{"person_id": id, "error": err}).Error("Failed to delete person")
		return nil, err
	}
	return person, nil
}

func (s *documentStore) DeleteMany(ctx context.Context, query core.Query) (*core.DeleteResult, error) {
	b := &builder{}
	tag, err := s.pool.Exec(ctx, "DELETE FROM people"+b.where(query), b.args...)
	if err != nil {
		logrus.WithField("error", err).Error("Failed to delete people")
		return nil, err
	}
	return &core.DeleteResult{DeletedCount: tag.RowsAffected()}, nil
}

func (s *documentStore) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}
