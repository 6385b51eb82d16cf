package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	app "area-bot/internal/application"
	"area-bot/internal/domain/entity"
)

// parsePoint разбирает "x,y" в координатах оригинала.
func parsePoint(s string) (app.Click, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return app.Click{}, fmt.Errorf("point %q: expected x,y", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return app.Click{}, fmt.Errorf("point %q: %w", s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return app.Click{}, fmt.Errorf("point %q: %w", s, err)
	}
	return app.Click{X: float64(x), Y: float64(y), ImageSpace: true}, nil
}

func readUpload(path string) (app.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return app.Upload{}, err
	}
	return app.Upload{Name: filepath.Base(path), Data: data}, nil
}

// calibrate открывает сессию и калибрует её по файлу шкалы.
func calibrate(ctx context.Context, scalePath, scalePoint string) (*entity.Session, error) {
	click, err := parsePoint(scalePoint)
	if err != nil {
		return nil, err
	}
	upload, err := readUpload(scalePath)
	if err != nil {
		return nil, err
	}

	session, err := appCtx.SessionService.Create(ctx, unit)
	if err != nil {
		return nil, err
	}

	out, err := appCtx.MeasurementService.Calibrate(ctx, session.ID, upload, click)
	if err != nil {
		return nil, fmt.Errorf("calibrate %s: %w", scalePath, err)
	}
	return out.Session, nil
}
