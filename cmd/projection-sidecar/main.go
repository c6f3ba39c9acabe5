package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/zoff-tech/go-projection/pkg/broker"
	"github.com/zoff-tech/go-projection/pkg/config"
	"github.com/zoff-tech/go-projection/pkg/dispatch"
	"github.com/zoff-tech/go-projection/pkg/handler"
	"github.com/zoff-tech/go-projection/pkg/projection"
	"github.com/zoff-tech/go-projection/pkg/relay"
	"github.com/zoff-tech/go-projection/pkg/store"
	"github.com/zoff-tech/go-projection/pkg/telemetry"
)

func main() {
	ctx := context.Background()

	// Load configuration from file or environment
	cfg, err := config.LoadFromFile("./cmd/projection-sidecar")
	if err != nil {
		log.Fatal("Error loading configuration: ", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to build logger: ", err)
	}
	defer logger.Sync()

	// Initialize telemetry (tracing)
	shutdownTelemetry, err := telemetry.Init(cfg.Observability)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer shutdownTelemetry()

	// Outbox repository on the primary store
	repo, err := store.NewRepository(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize outbox repository", zap.Error(err))
	}

	// Projection document stores, one collection per family
	docClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Projection.URI))
	if err != nil {
		logger.Fatal("Failed to connect projection store", zap.Error(err))
	}
	defer docClient.Disconnect(ctx)

	searchStore := projection.NewMongoStore(docClient, cfg.Projection.Database, collectionOr(cfg.Projection.SearchCollection, "post_search"))
	commentStore := projection.NewMongoStore(docClient, cfg.Projection.Database, collectionOr(cfg.Projection.CommentCollection, "comment_counts"))
	reactionStore := projection.NewMongoStore(docClient, cfg.Projection.Database, collectionOr(cfg.Projection.ReactionCollection, "reaction_counts"))

	searchApplier := projection.NewApplier(projection.FamilyPostSearch, searchStore, logger)
	commentApplier := projection.NewApplier(projection.FamilyCommentCounts, commentStore, logger)
	reactionApplier := projection.NewApplier(projection.FamilyReactionCounts, reactionStore, logger)

	dispatcher, err := dispatch.NewDispatcher(logger,
		handler.NewPostHandler(searchApplier, commentApplier, reactionApplier, logger),
		handler.NewCommentHandler(commentApplier, logger),
		handler.NewReactionHandler(reactionApplier, logger),
	)
	if err != nil {
		logger.Fatal("Invalid handler configuration", zap.Error(err))
	}

	// Optional envelope fan-out
	var fanout broker.MessageBroker
	if cfg.Broker.Type != "" {
		fanout, err = broker.NewBroker(ctx, &cfg.Broker)
		if err != nil {
			logger.Fatal("Failed to initialize broker", zap.Error(err))
		}
		defer fanout.Close()
	}

	r := relay.NewRelay(repo, dispatcher, fanout, logger, cfg)
	r.Start(ctx)
	logger.Info("projection sidecar started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	r.Stop()
}

func collectionOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}
