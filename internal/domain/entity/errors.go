package entity

import "errors"

// Ошибки предметной области. Каждая из них означает отклонённую операцию,
// а не сбой сервиса: пользователь должен повторить действие с новым кликом.
var (
	ErrEmptyCalibrationMask   = errors.New("empty calibration mask")
	ErrCalibrationUnavailable = errors.New("calibration not available")
	ErrOutOfBoundsPoint       = errors.New("point is outside the image")
	ErrNoMask                 = errors.New("segmenter returned no mask")
	ErrMaskSizeMismatch       = errors.New("mask size does not match image")
	ErrSessionNotFound        = errors.New("session not found")
	ErrInvalidUnit            = errors.New("invalid unit label")
	ErrInvalidScaleFactor     = errors.New("invalid scale factor")
	ErrInvalidImage           = errors.New("invalid image")
)
