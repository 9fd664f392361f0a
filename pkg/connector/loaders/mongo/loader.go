// Package mongo implements the "mongodb" loader: document inserts into a
// MongoDB collection.
package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/datafreight/freight/pkg/config"
	"github.com/datafreight/freight/pkg/connector/core"
	"github.com/datafreight/freight/pkg/connector/registry"
	"github.com/datafreight/freight/pkg/errors"
	"github.com/datafreight/freight/pkg/models"
)

func init() {
	_ = registry.RegisterLoader("mongodb", NewLoader)

	registry.RegisterInfo(registry.ComponentInfo{
		Type:        "mongodb",
		Kind:        core.KindLoader,
		Description: "MongoDB collection destination",
	})
}

// Loader inserts every record as one document. Connection setup is lazy so
// construction never touches the network.
type Loader struct {
	name       string
	logger     *zap.Logger
	uri        string
	database   string
	collection string

	client *mongo.Client
}

// NewLoader constructs a MongoDB loader from its configuration block.
func NewLoader(name string, params config.Params, logger *zap.Logger) (core.Loader, error) {
	uri := params.GetString("connection_string", "")
	if uri == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "mongodb loader requires a connection_string")
	}
	database := params.GetString("database", "")
	if database == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "mongodb loader requires a database")
	}
	collection := params.GetString("collection", "")
	if collection == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "mongodb loader requires a collection")
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Loader{
		name:       name,
		logger:     logger.With(zap.String("component", name)),
		uri:        uri,
		database:   database,
		collection: collection,
	}, nil
}

// connect establishes the client on first use.
func (l *Loader) connect(ctx context.Context) (*mongo.Client, error) {
	if l.client != nil {
		return l.client, nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(l.uri))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to mongodb")
	}
	l.client = client
	return client, nil
}

// ValidateDestination pings the server.
func (l *Loader) ValidateDestination(ctx context.Context) error {
	client, err := l.connect(ctx)
	if err != nil {
		return err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "mongodb ping failed")
	}
	return nil
}

// Load inserts all records with one InsertMany per run.
func (l *Loader) Load(ctx context.Context, batches []*models.Batch) error {
	client, err := l.connect(ctx)
	if err != nil {
		return err
	}

	documents := make([]interface{}, 0, models.TotalRows(batches))
	for _, batch := range batches {
		for _, record := range batch.Records {
			documents = append(documents, record)
		}
	}
	if len(documents) == 0 {
		return nil
	}

	coll := client.Database(l.database).Collection(l.collection)
	result, err := coll.InsertMany(ctx, documents)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeLoad, "mongodb insert failed")
	}

	l.logger.Info("mongodb load completed",
		zap.String("collection", l.collection),
		zap.Int("rows", len(result.InsertedIDs)))
	return nil
}

// Close disconnects the client.
func (l *Loader) Close(ctx context.Context) error {
	if l.client == nil {
		return nil
	}
	return l.client.Disconnect(ctx)
}
