package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"area-bot/internal/domain/entity"
	"area-bot/internal/domain/port"
	"area-bot/internal/logger"
)

// Upload загруженное пользователем изображение.
type Upload struct {
	Name string
	Data []byte
}

// Click точка, указанная пользователем. По умолчанию координаты заданы
// в системе превью; ImageSpace означает координаты оригинала.
type Click struct {
	X          float64
	Y          float64
	ImageSpace bool
}

// CalibrationOutput итог шага калибровки.
type CalibrationOutput struct {
	Session       *entity.Session
	PixelsPerUnit float64
	Point         entity.Point
	Overlay       []byte
}

// MeasurementOutput итог измерения одной частицы.
type MeasurementOutput struct {
	Session     *entity.Session
	Measurement entity.Measurement
	Overlay     []byte
}

type MeasurementService struct {
	sessions     *SessionService
	segmenter    port.Segmenter
	renderer     port.Renderer
	stager       port.ImageStager
	displayWidth int
	now          func() time.Time
}

// NewMeasurementService создаёт сервис калибровки и измерения площадей.
func NewMeasurementService(sessions *SessionService, segmenter port.Segmenter, renderer port.Renderer, stager port.ImageStager, displayWidth int) *MeasurementService {
	return &MeasurementService{
		sessions:     sessions,
		segmenter:    segmenter,
		renderer:     renderer,
		stager:       stager,
		displayWidth: displayWidth,
		now:          time.Now,
	}
}

// Preview готовит уменьшенную копию, по которой пользователь будет кликать.
func (s *MeasurementService) Preview(img Upload) (*port.Preview, error) {
	return s.renderer.Preview(img.Data, s.displayWidth)
}

// Calibrate сегментирует эталонный объект под кликом и запоминает в сессии
// число пикселей на единицу длины.
func (s *MeasurementService) Calibrate(ctx context.Context, sessionID string, img Upload, click Click) (*CalibrationOutput, error) {
	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}

	seg, err := s.segmentAt(ctx, img, click)
	if err != nil {
		return nil, err
	}

	ppu, err := entity.PixelsPerUnit(seg.mask)
	if err != nil {
		return nil, err
	}

	// Пока работал сегментатор, сессию могли изменить: калибровка
	// применяется к свежей копии.
	session, err := s.sessions.Update(ctx, sessionID, func(session *entity.Session) error {
		if err := session.Calibrate(ppu, s.now()); err != nil {
			return err
		}
		session.PendingFileID = ""
		session.SetState(entity.StateCalibrated)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.L().Info("session calibrated",
		zap.String("session", session.ID),
		zap.Float64("pixels_per_unit", ppu),
		zap.String("unit", session.Unit),
		zap.Int("x", seg.point.X),
		zap.Int("y", seg.point.Y))

	return &CalibrationOutput{
		Session:       session,
		PixelsPerUnit: ppu,
		Point:         seg.point,
		Overlay:       seg.overlay,
	}, nil
}

// Measure сегментирует частицу под кликом и переводит её площадь в единицы
// сессии. Без калибровки сегментатор не вызывается.
func (s *MeasurementService) Measure(ctx context.Context, sessionID string, img Upload, click Click) (*MeasurementOutput, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := session.Calibration(); err != nil {
		return nil, err
	}

	seg, err := s.segmentAt(ctx, img, click)
	if err != nil {
		return nil, err
	}

	// Площадь считается по калибровке и единице, действующим на момент ответа.
	var m entity.Measurement
	session, err = s.sessions.Update(ctx, sessionID, func(session *entity.Session) error {
		ppu, err := session.Calibration()
		if err != nil {
			return err
		}
		if m, err = entity.Measure(seg.mask, ppu, session.Unit); err != nil {
			return err
		}
		session.PendingFileID = ""
		session.SetState(entity.StateCalibrated)
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.Score = seg.score
	point := seg.point
	m.Point = &point

	logger.L().Info("particle measured",
		zap.String("session", session.ID),
		zap.Int("pixel_area", m.PixelArea),
		zap.Float64("area", m.Area),
		zap.String("unit", m.Unit))

	return &MeasurementOutput{Session: session, Measurement: m, Overlay: seg.overlay}, nil
}

// MeasureAll размечает все объекты на изображении и измеряет каждый,
// отбрасывая маски меньше minPixels пикселей.
func (s *MeasurementService) MeasureAll(ctx context.Context, sessionID string, img Upload, minPixels int) ([]entity.Measurement, *entity.Session, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	ppu, err := session.Calibration()
	if err != nil {
		return nil, session, err
	}

	width, height, err := s.renderer.Dimensions(img.Data)
	if err != nil {
		return nil, session, err
	}

	path, release, err := s.stager.Stage(img.Name, img.Data)
	if err != nil {
		return nil, session, err
	}
	defer release()

	candidates, err := s.segmenter.Generate(ctx, path)
	if err != nil {
		return nil, session, fmt.Errorf("generate masks: %w", err)
	}
	for i, c := range candidates {
		if c.Mask != nil && !c.Mask.SameSize(width, height) {
			return nil, session, fmt.Errorf("%w: mask %d is %dx%d, image %dx%d",
				entity.ErrMaskSizeMismatch, i, c.Mask.Width, c.Mask.Height, width, height)
		}
	}

	results, err := entity.MeasureCandidates(candidates, ppu, session.Unit, minPixels)
	if err != nil {
		return nil, session, err
	}

	logger.L().Info("image measured automatically",
		zap.String("session", session.ID),
		zap.Int("masks", len(candidates)),
		zap.Int("kept", len(results)))

	return results, session, nil
}

type segmentation struct {
	mask    *entity.Mask
	score   float64
	point   entity.Point
	overlay []byte
}

// segmentAt переводит клик в координаты оригинала, проверяет границы,
// временно кладёт изображение на диск и берёт лучшую маску сегментатора.
func (s *MeasurementService) segmentAt(ctx context.Context, img Upload, click Click) (*segmentation, error) {
	width, height, err := s.renderer.Dimensions(img.Data)
	if err != nil {
		return nil, err
	}

	k := 1.0
	if !click.ImageSpace {
		k = entity.DisplaySize(width, height, s.displayWidth).ScaleFactor
	}
	point, err := entity.RescalePoint(click.X, click.Y, k)
	if err != nil {
		return nil, err
	}
	if err := point.Within(width, height); err != nil {
		return nil, err
	}

	path, release, err := s.stager.Stage(img.Name, img.Data)
	if err != nil {
		return nil, err
	}
	defer release()

	candidates, err := s.segmenter.Segment(ctx, path, []entity.Point{point})
	if err != nil {
		return nil, fmt.Errorf("segment: %w", err)
	}
	if len(candidates) == 0 || candidates[0].Mask == nil {
		return nil, entity.ErrNoMask
	}

	best := candidates[0]
	if !best.Mask.SameSize(width, height) {
		return nil, fmt.Errorf("%w: mask %dx%d, image %dx%d",
			entity.ErrMaskSizeMismatch, best.Mask.Width, best.Mask.Height, width, height)
	}

	overlay, err := s.renderer.Overlay(img.Data, best.Mask, &point)
	if err != nil {
		logger.L().Warn("failed to render overlay", zap.Error(err))
		overlay = nil
	}

	return &segmentation{mask: best.Mask, score: best.Score, point: point, overlay: overlay}, nil
}

// IsRejection сообщает, что ошибка вызвана действием пользователя, а не сбоем.
func IsRejection(err error) bool {
	for _, target := range []error{
		entity.ErrEmptyCalibrationMask,
		entity.ErrCalibrationUnavailable,
		entity.ErrOutOfBoundsPoint,
		entity.ErrNoMask,
		entity.ErrInvalidUnit,
		entity.ErrInvalidScaleFactor,
		entity.ErrInvalidImage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
