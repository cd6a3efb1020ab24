package mmongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/opendogma/dogma/common/mlog"
)

// MongoConnection is a hub which deals with the read model
// (internal/readmodel): denormalized project and repository metadata,
// kept current from its own subscription to the replication log.
type MongoConnection struct {
	ConnectionStringSource string
	DB                     *mongo.Client
	Connected              bool
	Database               string
	Logger                 mlog.Logger
}

// Connect keeps a singleton connection with mongodb.
func (mc *MongoConnection) Connect(ctx context.Context) error {
	mc.Logger.Info("connecting to mongodb...")

	clientOptions := options.Client().ApplyURI(mc.ConnectionStringSource)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		mc.Logger.Errorf("failed to connect to mongodb: %v", err)
		return fmt.Errorf("connecting to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		mc.Logger.Errorf("mongodb ping failed: %v", err)
		return fmt.Errorf("pinging mongodb: %w", err)
	}

	mc.Logger.Info("connected to mongodb")

	mc.Connected = true
	mc.DB = client

	return nil
}

// GetDB returns the mongodb client, connecting lazily if necessary.
func (mc *MongoConnection) GetDB(ctx context.Context) (*mongo.Client, error) {
	if mc.DB == nil {
		if err := mc.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return mc.DB, nil
}
