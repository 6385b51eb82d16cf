package httpapi

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	app "area-bot/internal/application"
	"area-bot/internal/container"
	"area-bot/internal/domain/entity"
	"area-bot/internal/logger"
)

// ErrorResponse тело ответа с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type sessionResponse struct {
	ID            string              `json:"id"`
	State         entity.SessionState `json:"state"`
	Unit          string              `json:"unit"`
	Calibrated    bool                `json:"calibrated"`
	PixelsPerUnit float64             `json:"pixels_per_unit,omitempty"`
}

type unitRequest struct {
	Unit string `json:"unit"`
}

type calibrateResponse struct {
	PixelsPerUnit float64      `json:"pixels_per_unit"`
	Unit          string       `json:"unit"`
	Point         entity.Point `json:"point"`
	Overlay       string       `json:"overlay,omitempty"`
}

type measureResponse struct {
	entity.Measurement
	Overlay string `json:"overlay,omitempty"`
}

type measureAllResponse struct {
	Unit    string               `json:"unit"`
	Results []entity.Measurement `json:"results"`
}

// Handler HTTP-вариант сбора кликов: изображение и координаты клика
// приходят одним multipart-запросом.
type Handler struct {
	sessions       *app.SessionService
	measurements   *app.MeasurementService
	maxUploadBytes int64
}

func NewHandler(c *container.Container, maxUploadBytes int64) *Handler {
	return &Handler{
		sessions:       c.SessionService,
		measurements:   c.MeasurementService,
		maxUploadBytes: maxUploadBytes,
	}
}

// Register вешает маршруты API на роутер.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	{
		api.POST("/preview", h.Preview)
		api.POST("/sessions", h.CreateSession)
		api.GET("/sessions/:id", h.GetSession)
		api.DELETE("/sessions/:id", h.DeleteSession)
		api.PUT("/sessions/:id/unit", h.SetUnit)
		api.POST("/sessions/:id/calibrate", h.Calibrate)
		api.POST("/sessions/:id/measure", h.Measure)
		api.POST("/sessions/:id/measure-all", h.MeasureAll)
	}
}

// CreateSession открывает новую сессию измерения
func (h *Handler) CreateSession(c *gin.Context) {
	var req unitRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: err.Error()})
			return
		}
	}

	session, err := h.sessions.Create(c.Request.Context(), req.Unit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSessionResponse(session))
}

func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(session))
}

// DeleteSession закрывает сессию вместе с калибровкой
func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) SetUnit(c *gin.Context) {
	var req unitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: err.Error()})
		return
	}

	session, err := h.sessions.SetUnit(c.Request.Context(), c.Param("id"), req.Unit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(session))
}

// Preview возвращает уменьшенную копию, по которой клиент собирает клик
func (h *Handler) Preview(c *gin.Context) {
	upload, ok := h.readUpload(c)
	if !ok {
		return
	}

	preview, err := h.measurements.Preview(upload)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_image", Message: err.Error()})
		return
	}

	c.Header("X-Scale-Factor", strconv.FormatFloat(preview.Display.ScaleFactor, 'f', -1, 64))
	c.Header("X-Original-Size", fmt.Sprintf("%dx%d", preview.Width, preview.Height))
	c.Data(http.StatusOK, "image/jpeg", preview.Image)
}

// Calibrate выполняет шаг калибровки по шкале
func (h *Handler) Calibrate(c *gin.Context) {
	upload, ok := h.readUpload(c)
	if !ok {
		return
	}
	click, ok := readClick(c)
	if !ok {
		return
	}

	out, err := h.measurements.Calibrate(c.Request.Context(), c.Param("id"), upload, click)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, calibrateResponse{
		PixelsPerUnit: out.PixelsPerUnit,
		Unit:          out.Session.Unit,
		Point:         out.Point,
		Overlay:       encodeOverlay(out.Overlay),
	})
}

// Measure измеряет частицу под кликом
func (h *Handler) Measure(c *gin.Context) {
	upload, ok := h.readUpload(c)
	if !ok {
		return
	}
	click, ok := readClick(c)
	if !ok {
		return
	}

	out, err := h.measurements.Measure(c.Request.Context(), c.Param("id"), upload, click)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, measureResponse{Measurement: out.Measurement, Overlay: encodeOverlay(out.Overlay)})
}

// MeasureAll измеряет все объекты, найденные сегментатором
func (h *Handler) MeasureAll(c *gin.Context) {
	upload, ok := h.readUpload(c)
	if !ok {
		return
	}

	minPixels := 0
	if v := c.PostForm("min_pixels"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "min_pixels must be a non-negative integer"})
			return
		}
		minPixels = n
	}

	results, session, err := h.measurements.MeasureAll(c.Request.Context(), c.Param("id"), upload, minPixels)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, measureAllResponse{Unit: session.Unit, Results: results})
}

func (h *Handler) readUpload(c *gin.Context) (app.Upload, bool) {
	file, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Error:   "too_large",
				Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			})
			return app.Upload{}, false
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "image file is required"})
		return app.Upload{}, false
	}

	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:   "too_large",
			Message: fmt.Sprintf("image exceeds %d bytes", h.maxUploadBytes),
		})
		return app.Upload{}, false
	}

	f, err := file.Open()
	if err != nil {
		h.fail(c, err)
		return app.Upload{}, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		h.fail(c, err)
		return app.Upload{}, false
	}

	return app.Upload{Name: c.Param("id") + "-" + file.Filename, Data: data}, true
}

// readClick читает координаты клика в системе превью.
func readClick(c *gin.Context) (app.Click, bool) {
	x, errX := strconv.ParseFloat(c.PostForm("x"), 64)
	y, errY := strconv.ParseFloat(c.PostForm("y"), 64)
	if errX != nil || errY != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "x and y must be numbers"})
		return app.Click{}, false
	}
	return app.Click{X: x, Y: y, ImageSpace: c.PostForm("space") == "image"}, true
}

// fail переводит ошибку в HTTP-статус
func (h *Handler) fail(c *gin.Context, err error) {
	status, code := http.StatusBadGateway, "segmentation_failed"

	switch {
	case errors.Is(err, entity.ErrSessionNotFound):
		status, code = http.StatusNotFound, "session_not_found"
	case errors.Is(err, entity.ErrOutOfBoundsPoint):
		status, code = http.StatusBadRequest, "out_of_bounds_point"
	case errors.Is(err, entity.ErrInvalidUnit), errors.Is(err, entity.ErrInvalidScaleFactor):
		status, code = http.StatusBadRequest, "bad_request"
	case errors.Is(err, entity.ErrInvalidImage):
		status, code = http.StatusBadRequest, "bad_image"
	case errors.Is(err, entity.ErrCalibrationUnavailable):
		status, code = http.StatusConflict, "calibration_unavailable"
	case errors.Is(err, entity.ErrEmptyCalibrationMask):
		status, code = http.StatusUnprocessableEntity, "empty_calibration_mask"
	case errors.Is(err, entity.ErrNoMask):
		status, code = http.StatusUnprocessableEntity, "no_mask"
	}

	if status >= http.StatusInternalServerError {
		logger.L().Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, ErrorResponse{Error: code, Message: err.Error()})
}

func toSessionResponse(s *entity.Session) sessionResponse {
	return sessionResponse{
		ID:            s.ID,
		State:         s.State,
		Unit:          s.Unit,
		Calibrated:    s.IsCalibrated(),
		PixelsPerUnit: s.PixelsPerUnit,
	}
}

func encodeOverlay(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}
