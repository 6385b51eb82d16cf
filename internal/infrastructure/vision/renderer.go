//go:build !gocv
// +build !gocv

package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"area-bot/internal/domain/entity"
	"area-bot/internal/domain/port"
)

// Renderer готовит превью и наложение масок на чистом Go (без OpenCV).
type Renderer struct {
	JPEGQuality int
}

// NewRenderer создаёт рендерер с качеством JPEG по умолчанию.
func NewRenderer() *Renderer {
	return &Renderer{JPEGQuality: 90}
}

// Dimensions возвращает размер изображения.
func (r *Renderer) Dimensions(imageData []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", entity.ErrInvalidImage, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return 0, 0, fmt.Errorf("%w: empty image", entity.ErrInvalidImage)
	}
	return cfg.Width, cfg.Height, nil
}

// Preview уменьшает изображение до maxWidth, сохраняя пропорции.
func (r *Renderer) Preview(imageData []byte, maxWidth int) (*port.Preview, error) {
	img, err := decode(imageData)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	display := entity.DisplaySize(b.Dx(), b.Dy(), maxWidth)
	if display.Width != b.Dx() {
		img = imaging.Resize(img, display.Width, display.Height, imaging.Lanczos)
	}

	out, err := r.encode(img)
	if err != nil {
		return nil, err
	}

	return &port.Preview{
		Image:   out,
		Width:   b.Dx(),
		Height:  b.Dy(),
		Display: display,
	}, nil
}

// Overlay закрашивает пиксели маски полупрозрачным синим и ставит зелёную
// точку в месте клика.
func (r *Renderer) Overlay(imageData []byte, mask *entity.Mask, point *entity.Point) ([]byte, error) {
	img, err := decode(imageData)
	if err != nil {
		return nil, err
	}

	canvas := imaging.Clone(img)
	b := canvas.Bounds()
	if mask != nil && !mask.SameSize(b.Dx(), b.Dy()) {
		return nil, fmt.Errorf("%w: mask %dx%d, image %dx%d", entity.ErrMaskSizeMismatch, mask.Width, mask.Height, b.Dx(), b.Dy())
	}

	if mask != nil {
		for y := 0; y < mask.Height; y++ {
			for x := 0; x < mask.Width; x++ {
				if mask.At(x, y) {
					canvas.SetNRGBA(x, y, blend(canvas.NRGBAAt(x, y), MaskColor, MaskAlpha))
				}
			}
		}
	}

	if point != nil {
		radius := markerRadius(b.Dx(), b.Dy())
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				if dx*dx+dy*dy > radius*radius {
					continue
				}
				x, y := point.X+dx, point.Y+dy
				if image.Pt(x, y).In(b) {
					canvas.SetNRGBA(x, y, PointColor)
				}
			}
		}
	}

	return r.encode(canvas)
}

func (r *Renderer) encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(r.JPEGQuality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decode читает изображение без учёта EXIF-ориентации: маска от сегментатора
// строится по тем же пикселям.
func decode(imageData []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidImage, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", entity.ErrInvalidImage)
	}
	return img, nil
}

func blend(dst, src color.NRGBA, alpha float64) color.NRGBA {
	mix := func(a, b uint8) uint8 {
		return uint8(float64(a)*(1-alpha) + float64(b)*alpha + 0.5)
	}
	return color.NRGBA{R: mix(dst.R, src.R), G: mix(dst.G, src.G), B: mix(dst.B, src.B), A: 255}
}

var _ port.Renderer = (*Renderer)(nil)
