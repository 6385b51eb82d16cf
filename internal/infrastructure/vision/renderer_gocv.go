//go:build gocv
// +build gocv

package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"area-bot/internal/domain/entity"
	"area-bot/internal/domain/port"
)

// Renderer готовит превью и наложение масок через OpenCV.
type Renderer struct {
	JPEGQuality int
}

// NewRenderer создаёт рендерер с качеством JPEG по умолчанию.
func NewRenderer() *Renderer {
	return &Renderer{JPEGQuality: 90}
}

// Dimensions возвращает размер изображения.
func (r *Renderer) Dimensions(imageData []byte) (int, int, error) {
	mat, err := decodeToMat(imageData)
	if err != nil {
		return 0, 0, err
	}
	defer mat.Close()
	return mat.Cols(), mat.Rows(), nil
}

// Preview уменьшает изображение до maxWidth, сохраняя пропорции.
func (r *Renderer) Preview(imageData []byte, maxWidth int) (*port.Preview, error) {
	mat, err := decodeToMat(imageData)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	width, height := mat.Cols(), mat.Rows()
	display := entity.DisplaySize(width, height, maxWidth)
	if display.Width != width {
		resized := gocv.NewMat()
		gocv.Resize(mat, &resized, image.Pt(display.Width, display.Height), 0, 0, gocv.InterpolationArea)
		mat.Close()
		mat = resized
	}

	out, err := r.encode(mat)
	if err != nil {
		return nil, err
	}

	return &port.Preview{
		Image:   out,
		Width:   width,
		Height:  height,
		Display: display,
	}, nil
}

// Overlay закрашивает пиксели маски полупрозрачным синим и ставит зелёную
// точку в месте клика.
func (r *Renderer) Overlay(imageData []byte, mask *entity.Mask, point *entity.Point) ([]byte, error) {
	mat, err := decodeToMat(imageData)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	if mask != nil {
		if !mask.SameSize(mat.Cols(), mat.Rows()) {
			return nil, fmt.Errorf("%w: mask %dx%d, image %dx%d", entity.ErrMaskSizeMismatch, mask.Width, mask.Height, mat.Cols(), mat.Rows())
		}

		maskMat, err := toMat(mask)
		if err != nil {
			return nil, err
		}
		defer maskMat.Close()

		// OpenCV хранит каналы в порядке BGR.
		fill := gocv.NewMatWithSizeFromScalar(gocv.Scalar{
			Val1: float64(MaskColor.B),
			Val2: float64(MaskColor.G),
			Val3: float64(MaskColor.R),
		}, mat.Rows(), mat.Cols(), mat.Type())
		defer fill.Close()

		blended := gocv.NewMat()
		defer blended.Close()
		gocv.AddWeighted(mat, 1-MaskAlpha, fill, MaskAlpha, 0, &blended)
		blended.CopyToWithMask(&mat, maskMat)
	}

	if point != nil {
		radius := markerRadius(mat.Cols(), mat.Rows())
		c := color.RGBA{R: PointColor.R, G: PointColor.G, B: PointColor.B, A: 255}
		gocv.Circle(&mat, image.Pt(point.X, point.Y), radius, c, -1)
	}

	return r.encode(mat)
}

func (r *Renderer) encode(mat gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, r.JPEGQuality})
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// toMat переводит маску в одноканальную матрицу 0/255.
func toMat(mask *entity.Mask) (gocv.Mat, error) {
	data := make([]byte, mask.Width*mask.Height)
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			if mask.At(x, y) {
				data[y*mask.Width+x] = 255
			}
		}
	}
	return gocv.NewMatFromBytes(mask.Height, mask.Width, gocv.MatTypeCV8U, data)
}

// decodeToMat превращает байты изображения в gocv.Mat.
func decodeToMat(imageData []byte) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(imageData, gocv.IMReadColor)
	if err == nil && !mat.Empty() {
		return mat, nil
	}
	if !mat.Empty() {
		mat.Close()
	}
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: %v", entity.ErrInvalidImage, err)
	}
	return gocv.NewMat(), fmt.Errorf("%w: unsupported or empty image", entity.ErrInvalidImage)
}

var _ port.Renderer = (*Renderer)(nil)
