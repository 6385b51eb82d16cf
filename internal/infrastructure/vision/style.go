package vision

import "image/color"

// Цвета наложения, общие для обеих сборок.
var (
	MaskColor  = color.NRGBA{R: 30, G: 144, B: 255, A: 255}
	PointColor = color.NRGBA{G: 200, A: 255}
)

const MaskAlpha = 0.6

// markerRadius подбирает размер точки клика под размер изображения.
func markerRadius(width, height int) int {
	side := width
	if height > side {
		side = height
	}
	r := side / 150
	if r < 3 {
		r = 3
	}
	return r
}
