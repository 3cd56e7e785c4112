package persistence

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/petrijr/opsflow/pkg/api"
)

type MongoWorkflowStore struct {
	coll *mongo.Collection
}

var _ WorkflowStore = (*MongoWorkflowStore)(nil)

// NewMongoWorkflowStore creates a Mongo-backed workflow store.
// dbName defaults to "opsflow" if empty, collName defaults to "workflows".
func NewMongoWorkflowStore(client *mongo.Client, dbName, collName string) *MongoWorkflowStore {
	if dbName == "" {
		dbName = "opsflow"
	}
	if collName == "" {
		collName = "workflows"
	}

	return &MongoWorkflowStore{
		coll: client.Database(dbName).Collection(collName),
	}
}

type mongoWorkflowDoc struct {
	ID        string    `bson:"_id"`
	Payload   string    `bson:"payload"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (s *MongoWorkflowStore) SaveWorkflow(ctx context.Context, wf *api.Workflow) error {
	data, err := prepareWorkflow(wf)
	if err != nil {
		return err
	}

	doc := mongoWorkflowDoc{
		ID:        wf.ID,
		Payload:   string(data),
		UpdatedAt: time.Now().UTC(),
	}
	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": wf.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoWorkflowStore) GetWorkflow(ctx context.Context, id string) (*api.Workflow, error) {
	var doc mongoWorkflowDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrWorkflowNotFound
	}
	if err != nil {
		return nil, err
	}
	return DecodeWorkflow([]byte(doc.Payload))
}
