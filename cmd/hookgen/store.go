package main

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	goredis "github.com/redis/go-redis/v9"

	"github.com/mihaimyh/hookgen/internal/config"
	"github.com/mihaimyh/hookgen/pkg/hookgen"
	firestorestore "github.com/mihaimyh/hookgen/storage/firestore"
	"github.com/mihaimyh/hookgen/storage/memory"
	pgstore "github.com/mihaimyh/hookgen/storage/postgres"
	redisstore "github.com/mihaimyh/hookgen/storage/redis"
	"github.com/mihaimyh/hookgen/storage/tiered"
)

// openStore builds the configured quota store. The returned closers release
// its connections.
func openStore(ctx context.Context, c config.StorageConfig, log hookgen.Logger) (hookgen.Store, []func(), error) {
	switch c.Driver {
	case config.DriverMemory:
		return memory.New(), nil, nil
	case config.DriverRedis:
		return openRedis(c.Redis)
	case config.DriverFirestore:
		return openFirestore(ctx, c.Firestore)
	case config.DriverPostgres:
		return openPostgres(ctx, c.Postgres)
	case config.DriverTiered:
		return openTiered(ctx, c, log)
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", c.Driver)
	}
}

func openRedis(c config.RedisConfig) (hookgen.Store, []func(), error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})
	store, err := redisstore.New(client, redisstore.Config{
		KeyPrefix:     c.KeyPrefix,
		GenerationTTL: c.GenerationTTL,
	})
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return store, []func(){func() { _ = store.Close() }}, nil
}

func openFirestore(ctx context.Context, c config.FirestoreConfig) (hookgen.Store, []func(), error) {
	projectID := c.ProjectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	store, err := firestorestore.New(client, firestorestore.Config{
		UsersCollection:       c.UsersCollection,
		GenerationsCollection: c.GenerationsCollection,
	})
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return store, []func(){func() { _ = client.Close() }}, nil
}

func openPostgres(ctx context.Context, c config.PostgresConfig) (hookgen.Store, []func(), error) {
	store, err := pgstore.New(ctx, pgstore.Config{
		ConnectionString: c.DSN,
		MaxConns:         c.MaxConns,
		MinConns:         c.MinConns,
		CleanupEnabled:   c.CleanupEnabled,
		CleanupInterval:  c.CleanupInterval,
		GenerationTTL:    c.GenerationTTL,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to migrate postgres schema: %w", err)
	}
	return store, []func(){store.Close}, nil
}

func openTiered(ctx context.Context, c config.StorageConfig, log hookgen.Logger) (hookgen.Store, []func(), error) {
	hot, hotClosers, err := openRedis(c.Redis)
	if err != nil {
		return nil, nil, err
	}

	var (
		cold        hookgen.Store
		coldClosers []func()
	)
	switch c.Tiered.Cold {
	case config.DriverFirestore:
		cold, coldClosers, err = openFirestore(ctx, c.Firestore)
	case config.DriverPostgres:
		cold, coldClosers, err = openPostgres(ctx, c.Postgres)
	default:
		err = fmt.Errorf("unsupported tiered cold driver %q", c.Tiered.Cold)
	}
	closers := hotClosers
	if err != nil {
		runClosers(closers)
		return nil, nil, err
	}
	closers = append(closers, coldClosers...)

	store, err := tiered.New(tiered.Config{
		Hot:       hot,
		Cold:      cold,
		AsyncSync: c.Tiered.AsyncSync,
		AsyncErrorHandler: func(err error) {
			log.Error("tiered store replication failed",
				hookgen.Field{Key: "error", Value: hookgen.RedactSecrets(err.Error())})
		},
	})
	if err != nil {
		runClosers(closers)
		return nil, nil, err
	}
	// The replication worker drains before the backends close.
	closers = append(closers, func() { _ = store.Close() })
	return store, closers, nil
}

func runClosers(closers []func()) {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}
