package repo

import (
	"context"
	"fmt"

	"opportunity-radar/internal/domain"
	"opportunity-radar/internal/infra/db"
)

// Store объединяет хранилище записей и множество увиденных писем.
type Store interface {
	domain.RecordStore
	domain.SeenStore
}

// Open создаёт хранилище по драйверу; для postgres применяет миграции.
func Open(ctx context.Context, driver, pgDSN, sqlitePath string) (Store, func(), error) {
	switch driver {
	case "postgres":
		if err := db.RunMigrations(pgDSN); err != nil {
			return nil, nil, err
		}
		pool, err := db.Connect(ctx, pgDSN)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgres(pool), pool.Close, nil
	case "sqlite":
		store, err := OpenSQLite(ctx, sqlitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
	return nil, nil, fmt.Errorf("неизвестный драйвер хранилища %q", driver)
}
