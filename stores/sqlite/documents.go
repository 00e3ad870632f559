package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"people-store/core"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const schema = `CREATE TABLE IF NOT EXISTS people (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL CHECK (name <> ''),
	age INTEGER,
	favorite_foods TEXT NOT NULL DEFAULT '[]'
);`

const columns = "id, name, age, favorite_foods"

type documentStore struct {
	db *sql.DB
}

func NewDocumentStore(dataSourceName string) (core.PersonStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create people table: %w", err)
	}
	return &documentStore{db}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(row scanner) (*core.Person, error) {
	var (
		person core.Person
		age    sql.NullInt64
		foods  string
	)
	if err := row.Scan(&person.ID, &person.Name, &age, &foods); err != nil {
		return nil, err
	}
	if age.Valid {
		person.Age = core.IntPtr(int(age.Int64))
	}
	if err := json.Unmarshal([]byte(foods), &person.FavoriteFoods); err != nil {
		return nil, fmt.Errorf("failed to decode favorite foods of %s: %w", person.ID, err)
	}
	person = person.Clone()
	return &person, nil
}

func ageValue(p core.Person) any {
	if p.Age == nil {
		return nil
	}
	return int64(*p.Age)
}

func foodsValue(p core.Person) (string, error) {
	data, err := json.Marshal(p.Clone().FavoriteFoods)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, db execer, person core.Person) error {
	foods, err := foodsValue(person)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		"INSERT INTO people ("+columns+") VALUES (?, ?, ?, ?)",
		person.ID, person.Name, ageValue(person), foods)
	return err
}

func (s *documentStore) Create(ctx context.Context, person *core.Person) (*core.Person, error) {
	if err := person.Validate(); err != nil {
		return nil, err
	}
	saved := person.Normalize(ulid.Make().String())
	log := logrus.WithFields(logrus.Fields{"person_id": saved.ID, "name": saved.Name})

	if err := insert(ctx, s.db, saved); err != nil {
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
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out := make([]core.Person, 0, len(people))
	for _, p := range people {
		saved := p.Normalize(ulid.Make().String())
		if err := insert(ctx, tx, saved); err != nil {
			logrus.WithField("error", err).Error("Failed to create people")
			return nil, err
		}
		out = append(out, saved)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *documentStore) FindID(ctx context.Context, id string) (*core.Person, error) {
	log := logrus.WithField("person_id", id)
	log.Debug("Retrieving person by ID")

	person, err := scanPerson(s.db.QueryRowContext(ctx, "SELECT "+columns+" FROM people WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("Person with specified ID not found")
			return nil, nil
		}
		log.WithField("error", err).Error("Failed to retrieve person")
		return nil, err
	}
	return person, nil
}

// where renders the filter part of a query together with its arguments.
func where(q core.Query) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if q.Name != nil {
		clauses = append(clauses, "name = ?")
		args = append(args, *q.Name)
	}
	if q.Food != nil {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM json_each(people.favorite_foods) WHERE json_each.value = ?)")
		args = append(args, *q.Food)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func orderBy(q core.Query) string {
	dir, nulls := "ASC", "NULLS FIRST"
	if q.Descending {
		dir, nulls = "DESC", "NULLS LAST"
	}
	switch q.SortBy {
	case core.SortByName:
		return " ORDER BY name " + dir + ", id ASC"
	case core.SortByAge:
		return " ORDER BY age " + dir + " " + nulls + ", id ASC"
	}
	return " ORDER BY id ASC"
}

func selectIDs(q core.Query) (string, []any) {
	filter, args := where(q)
	stmt := "SELECT id FROM people" + filter + orderBy(q)
	if q.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, q.Limit)
	}
	return stmt, args
}

func (s *documentStore) Find(ctx context.Context, query core.Query) ([]core.Person, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	filter, args := where(query)
	stmt := "SELECT " + columns + " FROM people" + filter + orderBy(query)
	if query.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, query.Limit)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
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
	foods, err := foodsValue(saved)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE people SET name = ?, age = ?, favorite_foods = ? WHERE id = ?",
		saved.Name, ageValue(saved), foods, saved.ID)
	if err != nil {
		logrus.WithFields(logrus.Fields{"person_id": saved.ID, "error": err}).Error("Failed to save person")
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("save person with id %s: %w", saved.ID, core.ErrNotFound)
	}
	return &saved, nil
}

func (s *documentStore) FindOneAndUpdate(ctx context.Context, query core.Query, update core.Update) (*core.Person, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	query.Limit = 1
	target, args := selectIDs(query)
	if update.IsEmpty() {
		return s.FindOne(ctx, query)
	}

	stmt := "UPDATE people SET age = ? WHERE id = (" + target + ") RETURNING " + columns
	args = append([]any{int64(*update.Age)}, args...)
	person, err := scanPerson(s.db.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logrus.WithField("error", err).Error("Failed to update person")
		return nil, err
	}
	return person, nil
}

func (s *documentStore) DeleteID(ctx context.Context, id string) (*core.Person, error) {
	person, err := scanPerson(s.db.QueryRowContext(ctx, "DELETE FROM people WHERE id = ? RETURNING "+columns, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logrus.WithFields(logrus.Fields{"person_id": id, "error": err}).Error("Failed to delete person")
		return nil, err
	}
	return person, nil
}

func (s *documentStore) DeleteMany(ctx context.Context, query core.Query) (*core.DeleteResult, error) {
	filter, args := where(query)
	res, err := s.db.ExecContext(ctx, "DELETE FROM people"+filter, args...)
	if err != nil {
		logrus.WithField("error", err).Error("Failed to delete people")
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	return &core.DeleteResult{DeletedCount: n}, nil
}

func (s *documentStore) Close(ctx context.Context) error {
	return s.db.Close()
}
