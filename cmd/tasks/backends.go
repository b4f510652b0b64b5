package main

import (
	"context"
	"log"
	"time"

	"tasktracker/internal/auth"
	"tasktracker/internal/server"
	"tasktracker/internal/tasks"
	db "tasktracker/repository/db"
	inmemory "tasktracker/repository/inmemory"
	redisstore "tasktracker/repository/redis"
)

// backends is the storage chosen for one process run.
type backends struct {
	users    auth.UserStore
	sessions auth.SessionStore
	tasks    tasks.Store
	closers  []func()
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackends connects the configured stores. An unreachable Postgres or
// Redis degrades to the in-memory store rather than failing startup.
func openBackends(ctx context.Context, cfg *server.Config) (*backends, error) {
	b := &backends{}
	mem := inmemory.NewStorage()

	var pg *db.Storage
	if cfg.Storage == server.StoragePostgres {
		storage, err := db.NewStorage(cfg.DBStr)
		if err != nil {
			log.Println("[WARN] database unavailable, using in-memory storage:", err)
		} else {
			if err := db.Migration(cfg.DBStr, cfg.MigratePath); err != nil {
				storage.Close()
				return nil, err
			}
			pg = storage
			b.closers = append(b.closers, storage.Close)
		}
	}

	if pg != nil {
		b.users, b.tasks = pg, pg
	} else {
		b.users, b.tasks = mem, mem
	}

	switch cfg.SessionStore {
	case server.StorageRedis:
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		client, err := redisstore.Connect(pingCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		cancel()
		if err != nil {
			log.Println("[WARN] redis unavailable, keeping sessions in memory:", err)
			b.sessions = mem
			break
		}
		store := redisstore.NewSessionStore(client, redisstore.DefaultPrefix)
		b.sessions = store
		b.closers = append(b.closers, func() {
			if err := store.Close(); err != nil {
				log.Println("[WARN] failed to close redis client:", err)
			}
		})
	case server.StoragePostgres:
		if pg != nil {
			b.sessions = pg
		} else {
			b.sessions = mem
		}
	default:
		b.sessions = mem
	}

	return b, nil
}
