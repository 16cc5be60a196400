package content

import (
	"context"
	"fmt"

	"go-topic-relay/internal/infrastructure/config"
	"go-topic-relay/internal/infrastructure/hub"
	"go-topic-relay/internal/infrastructure/logger"
)

// Open builds the Store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.ContentConfig, log logger.Logger) (Store, error) {
	switch cfg.Driver {
	case "", "static":
		log.Info("content: using in-memory static store")
		return NewStaticStore(hub.Payload(cfg.Default)), nil
	case "sqlite":
		log.Infof("content: using sqlite store at %s", cfg.DSN)
		store, err := OpenSQLite(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		log.Info("content: using postgres store")
		store, err := OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown content driver %q", cfg.Driver)
	}
}
