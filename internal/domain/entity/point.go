package entity

import (
	"fmt"
	"math"
)

// Point координата пикселя в полном разрешении изображения.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Display размеры уменьшенной копии изображения, показанной пользователю.
type Display struct {
	Width       int
	Height      int
	ScaleFactor float64 // во сколько раз оригинал больше показанной копии
}

// DisplaySize вычисляет размер превью шириной не больше maxWidth.
// Маленькие изображения не растягиваются.
func DisplaySize(width, height, maxWidth int) Display {
	if maxWidth <= 0 || width <= maxWidth {
		return Display{Width: width, Height: height, ScaleFactor: 1}
	}
	k := float64(width) / float64(maxWidth)
	return Display{
		Width:       maxWidth,
		Height:      int(math.Floor(float64(height) / k)),
		ScaleFactor: k,
	}
}

// RescalePoint переводит клик из координат превью в координаты оригинала.
func RescalePoint(cx, cy, scaleFactor float64) (Point, error) {
	if scaleFactor <= 0 || math.IsNaN(scaleFactor) || math.IsInf(scaleFactor, 0) {
		return Point{}, fmt.Errorf("%w: %v", ErrInvalidScaleFactor, scaleFactor)
	}
	x, y := math.Round(cx*scaleFactor), math.Round(cy*scaleFactor)
	if !pixelCoord(x) || !pixelCoord(y) {
		return Point{}, fmt.Errorf("%w: (%v, %v)", ErrOutOfBoundsPoint, cx, cy)
	}
	return Point{X: int(x), Y: int(y)}, nil
}

// pixelCoord отсекает NaN, бесконечности и значения, не влезающие в int32:
// их перевод в int зависит от платформы.
func pixelCoord(v float64) bool {
	return !math.IsNaN(v) && v >= math.MinInt32 && v <= math.MaxInt32
}

// Within проверяет, что точка лежит внутри изображения width x height.
func (p Point) Within(width, height int) error {
	if p.X < 0 || p.Y < 0 || p.X >= width || p.Y >= height {
		return fmt.Errorf("%w: (%d, %d) not in %dx%d", ErrOutOfBoundsPoint, p.X, p.Y, width, height)
	}
	return nil
}
