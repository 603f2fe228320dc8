package db

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/jsphweid/melodyscore/model"
	"github.com/jsphweid/melodyscore/score"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("score not found")

// Store keeps rendered scores by id.
type Store interface {
	Put(ctx context.Context, id string, s model.Score) error
	Get(ctx context.Context, id string) (model.Score, error)
}

type MemoryStore struct {
	mu     sync.RWMutex
	scores map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scores: make(map[string][]byte)}
}

// Scores are kept encoded so callers never share note slices with the store.
func (m *MemoryStore) Put(_ context.Context, id string, s model.Score) error {
	data, err := score.Encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[id] = data
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (model.Score, error) {
	m.mu.RLock()
	data, ok := m.scores[id]
	m.mu.RUnlock()
	if !ok {
		return model.Score{}, ErrNotFound
	}
	return score.Decode(bytes.NewReader(data))
}

// item is the DynamoDB row. The score body is stored as its JSON encoding
// so rational beat values survive unchanged.
type item struct {
	PK       string  `dynamodbav:"PK"`
	Title    string  `dynamodbav:"Title"`
	TempoBPM float64 `dynamodbav:"TempoBPM"`
	NumNotes int     `dynamodbav:"NumNotes"`
	Body     string  `dynamodbav:"Body"`
}

func toItem(id string, s model.Score) (item, error) {
	data, err := score.Encode(s)
	if err != nil {
		return item{}, err
	}
	return item{PK: id, Title: s.Title, TempoBPM: s.TempoBPM, NumNotes: len(s.Notes), Body: string(data)}, nil
}

func fromItem(it item) (model.Score, error) {
	return score.Decode(strings.NewReader(it.Body))
}

type DynamoStore struct {
	client dynamodbiface.DynamoDBAPI
	table  string
}

func NewDynamoStore(client dynamodbiface.DynamoDBAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

// NewLocalDynamoStore connects to a DynamoDB endpoint such as DynamoDB Local.
func NewLocalDynamoStore(endpoint string, region string, table string) (*DynamoStore, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:   aws.String(region),
		Endpoint: aws.String(endpoint),
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not create a new DynamoDB session")
	}
	return NewDynamoStore(dynamodb.New(sess), table), nil
}

func (d *DynamoStore) Put(ctx context.Context, id string, s model.Score) error {
	it, err := toItem(id, s)
	if err != nil {
		return err
	}
	av, err := dynamodbattribute.MarshalMap(it)
	if err != nil {
		return errors.Wrap(err, "could not marshal score item")
	}
	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      av,
	})
	return errors.Wrap(err, "error from DynamoDB")
}

func (d *DynamoStore) Get(ctx context.Context, id string) (model.Score, error) {
	out, err := d.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key: map[string]*dynamodb.AttributeValue{
			"PK": {S: aws.String(id)},
		},
	})
	if err != nil {
		return model.Score{}, errors.Wrap(err, "error from DynamoDB")
	}
	if len(out.Item) == 0 {
		return model.Score{}, ErrNotFound
	}
	var it item
	if err := dynamodbattribute.UnmarshalMap(out.Item, &it); err != nil {
		return model.Score{}, errors.Wrap(err, "could not unmarshal score item")
	}
	return fromItem(it)
}
