package container

import (
	app "area-bot/internal/application"
	"area-bot/internal/domain/port"
)

type Container struct {
	SessionService     *app.SessionService
	MeasurementService *app.MeasurementService
}

// Deps внешние адаптеры, из которых собираются сервисы приложения.
type Deps struct {
	Sessions     port.SessionRepository
	Segmenter    port.Segmenter
	Renderer     port.Renderer
	Stager       port.ImageStager
	DisplayWidth int
	DefaultUnit  string
}

func New(d Deps) *Container {
	sessionService := app.NewSessionService(d.Sessions, d.DefaultUnit)
	measurementService := app.NewMeasurementService(sessionService, d.Segmenter, d.Renderer, d.Stager, d.DisplayWidth)

	return &Container{
		SessionService:     sessionService,
		MeasurementService: measurementService,
	}
}
