package app

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"area-bot/internal/domain/entity"
	"area-bot/internal/domain/port"
)

const sessionLockStripes = 64

type SessionService struct {
	repo        port.SessionRepository
	defaultUnit string
	locks       [sessionLockStripes]sync.Mutex
}

func NewSessionService(repo port.SessionRepository, defaultUnit string) *SessionService {
	return &SessionService{repo: repo, defaultUnit: defaultUnit}
}

func (s *SessionService) lock(id string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	mu := &s.locks[h.Sum32()%sessionLockStripes]
	mu.Lock()
	return mu.Unlock
}

// Update читает свежую копию сессии, применяет fn и сохраняет результат.
// Изменения одной сессии внутри процесса выполняются по очереди. Если fn
// вернула ошибку, сессия не сохраняется.
func (s *SessionService) Update(ctx context.Context, id string, fn func(*entity.Session) error) (*entity.Session, error) {
	unlock := s.lock(id)
	defer unlock()

	session, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(session); err != nil {
		return session, err
	}
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Create открывает новую сессию. Пустая единица заменяется единицей по умолчанию.
func (s *SessionService) Create(ctx context.Context, unit string) (*entity.Session, error) {
	session := entity.NewSession("", s.defaultUnit)
	if unit != "" {
		if err := session.SetUnit(unit); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SessionService) Get(ctx context.Context, id string) (*entity.Session, error) {
	return s.repo.Get(ctx, id)
}

// GetOrCreate возвращает сессию чата, создаёт новую если её нет.
func (s *SessionService) GetOrCreate(ctx context.Context, id string, chatID int64) (*entity.Session, error) {
	unlock := s.lock(id)
	defer unlock()

	session, err := s.repo.Get(ctx, id)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, entity.ErrSessionNotFound) {
		return nil, err
	}

	session = entity.NewSession(id, s.defaultUnit)
	session.ChatID = chatID
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SessionService) SetState(ctx context.Context, id string, state entity.SessionState) (*entity.Session, error) {
	return s.Update(ctx, id, func(session *entity.Session) error {
		session.SetState(state)
		return nil
	})
}

func (s *SessionService) SetUnit(ctx context.Context, id, unit string) (*entity.Session, error) {
	return s.Update(ctx, id, func(session *entity.Session) error {
		return session.SetUnit(unit)
	})
}

// AwaitClick запоминает фото, по которому пользователь сейчас кликнет.
func (s *SessionService) AwaitClick(ctx context.Context, id, fileID string, state entity.SessionState) (*entity.Session, error) {
	return s.Update(ctx, id, func(session *entity.Session) error {
		session.PendingFileID = fileID
		session.SetState(state)
		return nil
	})
}

func (s *SessionService) BeginCalibration(ctx context.Context, id string) (*entity.Session, error) {
	return s.SetState(ctx, id, entity.StateAwaitingScalePhoto)
}

// BeginMeasurement переводит сессию к ожиданию фото частицы; без калибровки
// возвращает entity.ErrCalibrationUnavailable.
func (s *SessionService) BeginMeasurement(ctx context.Context, id string, auto bool) (*entity.Session, error) {
	return s.Update(ctx, id, func(session *entity.Session) error {
		if !session.IsCalibrated() {
			return entity.ErrCalibrationUnavailable
		}
		if auto {
			session.SetState(entity.StateAwaitingAutoPhoto)
		} else {
			session.SetState(entity.StateAwaitingTargetPhoto)
		}
		return nil
	})
}

func (s *SessionService) Cancel(ctx context.Context, id string) (*entity.Session, error) {
	return s.Update(ctx, id, func(session *entity.Session) error {
		session.PendingFileID = ""
		session.SetState(entity.StateMainMenu)
		return nil
	})
}

// Delete закрывает сессию.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	unlock := s.lock(id)
	defer unlock()

	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
