package store

import (
	"context"
	"database/sql"
	"fmt"

	"cloud.google.com/go/spanner"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zoff-tech/go-projection/pkg/config"

	_ "github.com/lib/pq" // PostgreSQL driver
)

var NewSpannerRepositoryFactory = func(client *spanner.Client) OutBoxRepository {
	return &SpannerRepository{client: client}
}

var NewMongoRepositoryFactory = func(client *mongo.Client, cfg config.DbSettings) OutBoxRepository {
	return NewMongoRepository(client, cfg.Database, cfg.Collection)
}

func NewRepository(ctx context.Context, cfg config.DbSettings) (OutBoxRepository, error) {
	switch cfg.Type {
	case "postgres":
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, err
		}
		return &PostgresRepository{Db: db}, nil
	case "spanner":
		client, err := spanner.NewClient(ctx, cfg.URI)
		if err != nil {
			return nil, err
		}
		return NewSpannerRepositoryFactory(client), nil
	case "mongo":
		client, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(cfg.URI))
		if err != nil {
			return nil, err
		}
		return NewMongoRepositoryFactory(client, cfg), nil
	default:
		return nil, fmt.Errorf("unsupported DB type: %s", cfg.Type)
	}
}
