package entity

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// SessionState состояние сессии измерения
type SessionState string

const (
	StateMainMenu            SessionState = "main_menu"             // В главном меню
	StateAwaitingScalePhoto  SessionState = "awaiting_scale_photo"  // Ожидание фото шкалы
	StateAwaitingScaleClick  SessionState = "awaiting_scale_click"  // Ожидание клика по шкале
	StateCalibrated          SessionState = "calibrated"            // Калибровка есть, можно присылать фото частиц
	StateAwaitingTargetPhoto SessionState = "awaiting_target_photo" // Ожидание фото частицы
	StateAwaitingTargetClick SessionState = "awaiting_target_click" // Ожидание клика по частице
	StateAwaitingAutoPhoto   SessionState = "awaiting_auto_photo"   // Ожидание фото для автоматической разметки
)

const maxUnitLength = 16

// Session хранит всё, что переходит от шага калибровки к шагу измерения.
type Session struct {
	ID            string       `json:"id"`
	ChatID        int64        `json:"chat_id,omitempty"`
	State         SessionState `json:"state"`
	Unit          string       `json:"unit"`
	PixelsPerUnit float64      `json:"pixels_per_unit,omitempty"`
	CalibratedAt  time.Time    `json:"calibrated_at,omitempty"`
	PendingFileID string       `json:"pending_file_id,omitempty"` // фото, ожидающее клика
}

// NewSession создаёт сессию с начальным состоянием. Пустой id заменяется на UUID.
func NewSession(id string, unit string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{
		ID:    id,
		State: StateMainMenu,
		Unit:  unit,
	}
}

// SetState обновляет состояние сессии
func (s *Session) SetState(state SessionState) {
	s.State = state
}

// SetUnit меняет подпись единицы измерения.
func (s *Session) SetUnit(unit string) error {
	unit = strings.TrimSpace(unit)
	if err := ValidateUnit(unit); err != nil {
		return err
	}
	s.Unit = unit
	return nil
}

// Calibrate запоминает коэффициент пикселей на единицу.
func (s *Session) Calibrate(pixelsPerUnit float64, at time.Time) error {
	if !validFactor(pixelsPerUnit) {
		return ErrCalibrationUnavailable
	}
	s.PixelsPerUnit = pixelsPerUnit
	s.CalibratedAt = at
	return nil
}

// Calibration возвращает коэффициент или ErrCalibrationUnavailable.
func (s *Session) Calibration() (float64, error) {
	if !validFactor(s.PixelsPerUnit) {
		return 0, ErrCalibrationUnavailable
	}
	return s.PixelsPerUnit, nil
}

// IsCalibrated сообщает, можно ли уже измерять площади.
func (s *Session) IsCalibrated() bool {
	return validFactor(s.PixelsPerUnit)
}

// ValidateUnit проверяет подпись единицы: 1..16 печатных символов.
func ValidateUnit(unit string) error {
	n := utf8.RuneCountInString(unit)
	if n == 0 || n > maxUnitLength {
		return fmt.Errorf("%w: length must be 1..%d", ErrInvalidUnit, maxUnitLength)
	}
	for _, r := range unit {
		if !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return fmt.Errorf("%w: %q", ErrInvalidUnit, unit)
		}
	}
	return nil
}
