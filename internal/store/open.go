package store

import (
	"context"
	"fmt"

	"github.com/ASHISH26940/headlines/internal/config"
	"github.com/ASHISH26940/headlines/internal/headline"
	"github.com/ASHISH26940/headlines/internal/store/boltstore"
	"github.com/ASHISH26940/headlines/internal/store/filestore"
	"github.com/ASHISH26940/headlines/internal/store/remotestore"
	"github.com/ASHISH26940/headlines/internal/store/sqlstore"
	"github.com/hashicorp/go-hclog"
)

// Open creates the backend named by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig, logger hclog.Logger) (headline.Store, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger.Info("opening headline store", "backend", cfg.Backend, "path", cfg.Path, "history_limit", cfg.HistoryLimit)

	switch cfg.Backend {
	case config.BackendFile:
		return filestore.New(cfg.Path, filestore.Options{
			HistoryLimit: fileHistoryLimit(cfg.HistoryLimit),
			Logger:       logger,
		}), nil
	case config.BackendRemote:
		s, err := remotestore.New(cfg.Remote.URL, cfg.Remote.Token, remotestore.Options{
			HistoryLimit:  cfg.HistoryLimit,
			Transactional: cfg.Remote.Transactional,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendBolt:
		s, err := boltstore.Open(cfg.Path, boltstore.Options{HistoryLimit: cfg.HistoryLimit, Logger: logger})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendSQLite:
		s, err := sqlstore.Open(ctx, cfg.Path, sqlstore.Options{HistoryLimit: cfg.HistoryLimit, Logger: logger})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendJournal:
		j, err := OpenJournal(cfg.Path, cfg.HistoryLimit, logger)
		if err != nil {
			return nil, err
		}
		return j, nil
	case config.BackendMemory:
		return NewMemory(cfg.HistoryLimit), nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Backend)
	}
}

// fileHistoryLimit maps the shared "0 keeps everything" convention onto the
// file store, where zero selects its default cap.
func fileHistoryLimit(limit int) int {
	if limit == 0 {
		return -1
	}
	return limit
}

