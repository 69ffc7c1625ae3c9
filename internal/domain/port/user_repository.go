package port

import (
	"context"

	"depseg/internal/domain/entity"
)

// UserRepository хранилище пользователей бота
type UserRepository interface {
	// Get возвращает пользователя, при первом обращении создаёт его
	Get(ctx context.Context, userID, chatID int64) (*entity.User, error)

	// Save сохраняет пользователя целиком
	Save(ctx context.Context, user *entity.User) error

	// UpdateState обновляет состояние диалога
	UpdateState(ctx context.Context, userID int64, state entity.UserState) error

	// RecordPrediction отмечает обработанный снимок и возвращает новый счётчик
	RecordPrediction(ctx context.Context, userID int64) (int, error)
}
