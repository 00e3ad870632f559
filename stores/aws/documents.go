package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"people-store/core"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const extension = ".json"

// objectAPI is the subset of the S3 client the store uses.
type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// documentStore keeps one JSON object per person. S3 has no conditional
// multi-object writes, so read-modify-write sequences are serialized in
// process only.
type documentStore struct {
	mu       sync.Mutex
	s3Client objectAPI
	bucket   string // Name of the S3 bucket
	prefix   string
}

func NewDocumentStore(ctx context.Context, bucketName, prefix string) (core.PersonStore, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	return newDocumentStore(s3.NewFromConfig(cfg), bucketName, prefix), nil
}

func newDocumentStore(client objectAPI, bucketName, prefix string) *documentStore {
	return &documentStore{
		s3Client: client,
		bucket:   bucketName,
		prefix:   prefix,
	}
}

func (s *documentStore) key(id string) string {
	return s.prefix + id + extension
}

func (s *documentStore) put(ctx context.Context, person core.Person) error {
	data, err := json.Marshal(person)
	if err != nil {
		return fmt.Errorf("failed to encode person: %w", err)
	}
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(person.ID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{"person_id": person.ID, "error": err}).Error("Failed to upload person")
		return fmt.Errorf("failed to upload person: %w", err)
	}
	return nil
}

func (s *documentStore) get(ctx context.Context, key string) (*core.Person, error) {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read person data: %w", err)
	}
	var person core.Person
	if err := json.Unmarshal(data, &person); err != nil {
		return nil, fmt.Errorf("failed to decode object %s: %w", key, err)
	}
	person = person.Clone()
	return &person, nil
}

// getIfValid treats anything that is not a ULID as absent, so ids like
// "../x" never become keys outside the prefix.
func (s *documentStore) getIfValid(ctx context.Context, id string) (*core.Person, error) {
	if !validID(id) {
		return nil, nil
	}
	return s.get(ctx, s.key(id))
}

func validID(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}

func (s *documentStore) remove(ctx context.Context, id string) error {
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete person %s: %w", id, err)
	}
	return nil
}

func (s *documentStore) list(ctx context.Context) ([]core.Person, error) {
	people := []core.Person{}
	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list people: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, extension) {
				continue
			}
			p, err := s.get(ctx, key)
			if err != nil {
				return nil, err
			}
			if p != nil {
				people = append(people, *p)
			}
		}
	}
	return people, nil
}

func (s *documentStore) Create(ctx context.Context, person *core.Person) (*core.Person, error) {
	if err := person.Validate(); err != nil {
		return nil, err
	}
	saved := person.Normalize(ulid.Make().String())
	if err := s.put(ctx, saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *documentStore) CreateMany(ctx context.Context, people []core.Person) ([]core.Person, error) {
	if err := core.ValidateAll(people); err != nil {
		return nil, err
	}
	out := make([]core.Person, 0, len(people))
	for _, p := range people {
		saved := p.Normalize(ulid.Make().String())
		if err := s.put(ctx, saved); err != nil {
			for _, done := range out {
				_ = s.remove(ctx, done.ID)
			}
			return nil, err
		}
		out = append(out, saved)
	}
	return out, nil
}

func (s *documentStore) FindID(ctx context.Context, id string) (*core.Person, error) {
	logrus.WithField("person_id", id).Debug("Retrieving person by ID")
	return s.getIfValid(ctx, id)
}

func (s *documentStore) Find(ctx context.Context, query core.Query) ([]core.Person, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	all, err := s.list(ctx)
	if err != nil {
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
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.getIfValid(ctx, person.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("save person with id %s: %w", person.ID, core.ErrNotFound)
	}
	saved := person.Normalize(person.ID)
	if err := s.put(ctx, saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *documentStore) FindOneAndUpdate(ctx context.Context, query core.Query, update core.Update) (*core.Person, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.list(ctx)
	if err != nil {
		return nil, err
	}
	query.Limit = 1
	found := query.Apply(all)
	if len(found) == 0 {
		return nil, nil
	}
	target := found[0]
	update.Apply(&target)
	if err := s.put(ctx, target); err != nil {
		return nil, err
	}
	return &target, nil
}

func (s *documentStore) DeleteID(ctx context.Context, id string) (*core.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.getIfValid(ctx, id)
	if err != nil || existing == nil {
		return nil, err
	}
	if err := s.remove(ctx, id); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *documentStore) DeleteMany(ctx context.Context, query core.Query) (*core.DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.list(ctx)
	if err != nil {
		return nil, err
	}
	res := &core.DeleteResult{}
	for _, p := range all {
		if !query.Matches(p) {
			continue
		}
		if err := s.remove(ctx, p.ID); err != nil {
			return res, err
		}
		res.DeletedCount++
	}
	return res, nil
}

func (s *documentStore) Close(ctx context.Context) error {
	return nil
}
