package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"emailer/internal/application/common"
	"emailer/pkg/db"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// LockProvider — именованная блокировка на кластер: периодическая задача
// выполняется, только если захват удался. Для одноинстансного запуска
// подойдёт реализация, которая всегда отвечает held=true.
type LockProvider interface {
	TryAcquire(ctx context.Context, name string, maxHold time.Duration) (bool, error)
	Release(ctx context.Context, name string, minHold time.Duration) error
}

// LockRepoImpl хранит блокировки в таблице scheduler_lock. Захват удаётся,
// если строки нет или её lock_until уже в прошлом; lock_until = now() + maxHold
// ограничивает зависший тик. Release не укорачивает блокировку ниже
// locked_at + minHold, что защищает от наложения быстрых повторных запусков.
type LockRepoImpl struct {
	db     db.DB
	owner  string
	logger *zap.SugaredLogger
}

func NewLockRepo(db db.DB, owner string, logger *zap.SugaredLogger) *LockRepoImpl {
	return &LockRepoImpl{db: db, owner: owner, logger: logger}
}

func (l *LockRepoImpl) TryAcquire(ctx context.Context, name string, maxHold time.Duration) (bool, error) {
	var acquired string
	err := l.db.QueryRow(ctx, acquireLock, name, common.PgInterval(maxHold), l.owner).Scan(&acquired)
	switch {
	case err == nil:
		l.logger.Debugf("[job: %s] lock acquired by %s for at most %s", name, l.owner, maxHold)
		return true, nil
	case errors.Is(err, pgx.ErrNoRows):
		// блокировка ещё удерживается другим инстансом
		l.logger.Debugf("[job: %s] lock is held elsewhere", name)
		return false, nil
	default:
		return false, fmt.Errorf("acquire lock %q: %w", name, err)
	}
}

func (l *LockRepoImpl) Release(ctx context.Context, name string, minHold time.Duration) error {
	_, err := l.db.Exec(ctx, releaseLock, name, common.PgInterval(minHold), l.owner)
	if err != nil {
		return fmt.Errorf("release lock %q: %w", name, err)
	}
	return nil
}
