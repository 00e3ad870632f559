package mongodb

import (
	"context"
	"errors"
	"fmt"
	"people-store/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName matches the collection an ODM derives from the Person model.
const CollectionName = "people"

type documentStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewDocumentStore(ctx context.Context, uri, database string) (core.PersonStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to reach mongodb: %w", err)
	}
	return &documentStore{
		client:     client,
		collection: client.Database(database).Collection(CollectionName),
	}, nil
}

func filter(q core.Query) bson.D {
	f := bson.D{}
	if q.Name != nil {
		f = append(f, bson.E{Key: "name", Value: *q.Name})
	}
	if q.Food != nil {
		// Equality against an array field matches any element.
		f = append(f, bson.E{Key: "favoriteFoods", Value: *q.Food})
	}
	return f
}

func sortSpec(q core.Query) bson.D {
	dir := 1
	if q.Descending {
		dir = -1
	}
	switch q.SortBy {
	case core.SortByName:
		return bson.D{{Key: "name", Value: dir}, {Key: "_id", Value: 1}}
	case core.SortByAge:
		return bson.D{{Key: "age", Value: dir}, {Key: "_id", Value: 1}}
	}
	return bson.D{{Key: "_id", Value: 1}}
}

func projection(q core.Query) bson.D {
	if q.ExcludeAge {
		return bson.D{{Key: "age", Value: 0}}
	}
	return nil
}

func decode(res *mongo.SingleResult) (*core.Person, error) {
	var person core.Person
	if err := res.Decode(&person); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	person = person.Clone()
	return &person, nil
}

func (s *documentStore) Create(ctx context.Context, person *core.Person) (*core.Person, error) {
	if err := person.Validate(); err != nil {
		return nil, err
	}
	saved := person.Normalize(ulid.Make().String())
	log := logrus.WithFields(logrus.Fields{"person_id": saved.ID, "name": saved.Name})

	if _, err := s.collection.InsertOne(ctx, saved); err != nil {
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
	if len(people) == 0 {
		return []core.Person{}, nil
	}
	out := make([]core.Person, 0, len(people))
	docs := make([]any, 0, len(people))
	for _, p := range people {
		saved := p.Normalize(ulid.Make().String())
		out = append(out, saved)
		docs = append(docs, saved)
	}
	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		logrus.WithField("error", err).Error("Failed to create people")
		return nil, err
	}
	return out, nil
}

func (s *documentStore) FindID(ctx context.Context, id string) (*core.Person, error) {
	log := logrus.WithField("person_id", id)
	log.Debug("Retrieving person by ID")

	person, err := decode(s.collection.FindOne(ctx, bson.D{{Key: "_id", Value: id}}))
	if err != nil {
		log.WithField("error", err).Error("Failed to retrieve person")
		return nil, err
	}
	return person, nil
}

func (s *documentStore) Find(ctx context.Context, query core.Query) ([]core.Person, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(sortSpec(query))
	if query.Limit > 0 {
		opts.SetLimit(int64(query.Limit))
	}
	if p := projection(query); p != nil {
		opts.SetProjection(p)
	}

	cursor, err := s.collection.Find(ctx, filter(query), opts)
	if err != nil {
		logrus.WithField("error", err).Error("Failed to find people")
		return nil, err
	}
	people := []core.Person{}
	if err := cursor.All(ctx, &people); err != nil {
		return nil, err
	}
	for i := range people {
		people[i] = people[i].Clone()
	}
	return people, nil
}

func (s *documentStore) FindOne(ctx context.Context, query core.Query) (*core.Person, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	opts := options.FindOne().SetSort(sortSpec(query))
	if p := projection(query); p != nil {
		opts.SetProjection(p)
	}
	return decode(s.collection.FindOne(ctx, filter(query), opts))
}

func (s *documentStore) Save(ctx context.Context, person *core.Person) (*core.Person, error) {
	if err := person.Validate(); err != nil {
		return nil, err
	}
	saved := person.Normalize(person.ID)
	res, err := s.collection.ReplaceOne(ctx, bson.D{{Key: "_id", Value: saved.ID}}, saved)
	if err != nil {
		logrus.WithFields(logrus.Fields{"person_id": saved.ID, "error": err}).Error("Failed to save person")
		return nil, err
	}
	if res.MatchedCount == 0 {
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
	opts := options.FindOneAndUpdate().
		SetSort(sortSpec(query)).
		SetReturnDocument(options.After)
	if p := projection(query); p != nil {
		opts.SetProjection(p)
	}
	set := bson.D{{Key: "$set", Value: bson.D{{Key: "age", Value: *update.Age}}}}

	person, err := decode(s.collection.FindOneAndUpdate(ctx, filter(query), set, opts))
	if err != nil {
		logrus.WithField("error", err).Error("Failed to update person")
		return nil, err
	}
	return person, nil
}

func (s *documentStore) DeleteID(ctx context.Context, id string) (*core.Person, error) {
	person, err := decode(s.collection.FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: id}}))
	if err != nil {
		logrus.WithFields(logrus.Fields{"person_id": id, "error": err}).Error("Failed to delete person")
		return nil, err
	}
	return person, nil
}

func (s *documentStore) DeleteMany(ctx context.Context, query core.Query) (*core.DeleteResult, error) {
	res, err := s.collection.DeleteMany(ctx, filter(query))
	if err != nil {
		logrus.WithField("error", err).Error("Failed to delete people")
		return nil, err
	}
	return &core.DeleteResult{DeletedCount: res.DeletedCount}, nil
}

func (s *documentStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
