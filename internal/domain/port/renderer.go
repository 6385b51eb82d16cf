package port

import "area-bot/internal/domain/entity"

// Preview уменьшенная копия изображения для показа пользователю.
type Preview struct {
	Image   []byte // JPEG
	Width   int    // ширина оригинала
	Height  int    // высота оригинала
	Display entity.Display
}

// Renderer готовит изображения для показа пользователю
type Renderer interface {
	// Dimensions возвращает размер изображения в пикселях
	Dimensions(imageData []byte) (width, height int, err error)

	// Preview уменьшает изображение до ширины не больше maxWidth
	Preview(imageData []byte, maxWidth int) (*Preview, error)

	// Overlay накладывает маску и отмечает точку клика (point может быть nil)
	Overlay(imageData []byte, mask *entity.Mask, point *entity.Point) ([]byte, error)
}
