package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"area-bot/internal/logger"
)

// Logger Zap-мидлварь для логирования запросов
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.L().Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.String("ip", c.ClientIP()),
			zap.Duration("cost", time.Since(start)),
		)
	}
}

// multipartOverhead запас на поля формы и заголовки частей сверх самого файла.
const multipartOverhead = 64 << 10

// BodyLimit ограничивает размер тела запроса до разбора multipart-формы.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Error:   "too_large",
				Message: fmt.Sprintf("request body exceeds %d bytes", maxBytes),
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// NewRouter собирает gin-роутер со всеми маршрутами.
func NewRouter(h *Handler, mode string) *gin.Engine {
	gin.SetMode(mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(Logger())
	if h.maxUploadBytes > 0 {
		r.MaxMultipartMemory = h.maxUploadBytes
		r.Use(BodyLimit(h.maxUploadBytes + multipartOverhead))
	}
	h.Register(r)

	return r
}
