package storage

import (
	"context"
	"sync"

	"depseg/internal/domain/entity"
	"depseg/internal/domain/port"
)

// MemoryUserRepository in-memory хранилище пользователей бота
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[int64]*entity.User
}

// NewMemoryUserRepository создаёт пустое хранилище
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[int64]*entity.User),
	}
}

// Get возвращает копию пользователя, при первом обращении регистрирует его
func (r *MemoryUserRepository) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		user = entity.NewUser(userID, chatID)
		r.users[userID] = user
	}
	cp := *user
	return &cp, nil
}

// Save перезаписывает пользователя
func (r *MemoryUserRepository) Save(ctx context.Context, user *entity.User) error {
	cp := *user
	r.mu.Lock()
	r.users[user.ID] = &cp
	r.mu.Unlock()
	return nil
}

// UpdateState меняет состояние; неизвестный пользователь игнорируется
func (r *MemoryUserRepository) UpdateState(ctx context.Context, userID int64, state entity.UserState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user, ok := r.users[userID]; ok {
		user.SetState(state)
	}
	return nil
}

// RecordPrediction увеличивает счётчик обработанных снимков
func (r *MemoryUserRepository) RecordPrediction(ctx context.Context, userID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return 0, nil
	}
	user.Predictions++
	return user.Predictions, nil
}

var _ port.UserRepository = (*MemoryUserRepository)(nil)
