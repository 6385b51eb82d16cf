package port

import (
	"context"

	"area-bot/internal/domain/entity"
)

// SessionRepository интерфейс хранилища сессий измерения
type SessionRepository interface {
	// Get возвращает сессию по ID или entity.ErrSessionNotFound
	Get(ctx context.Context, id string) (*entity.Session, error)

	// Save сохраняет состояние сессии
	Save(ctx context.Context, session *entity.Session) error

	// Delete удаляет сессию, отсутствие сессии не считается ошибкой
	Delete(ctx context.Context, id string) error
}
