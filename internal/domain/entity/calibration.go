package entity

import (
	"math"
	"sort"
)

// PixelsPerUnit оценивает ширину эталонного объекта в пикселях: среднее
// по всем непустым строкам маски.
func PixelsPerUnit(m *Mask) (float64, error) {
	total, rows := 0, 0
	for _, s := range m.RowSums() {
		if s > 0 {
			total += s
			rows++
		}
	}
	if rows == 0 {
		return 0, ErrEmptyCalibrationMask
	}
	return float64(total) / float64(rows), nil
}

// Area переводит площадь маски из пикселей в квадратные единицы.
func Area(m *Mask, pixelsPerUnit float64) (float64, error) {
	if !validFactor(pixelsPerUnit) {
		return 0, ErrCalibrationUnavailable
	}
	return float64(m.Sum()) / (pixelsPerUnit * pixelsPerUnit), nil
}

func validFactor(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// Measurement результат измерения одного объекта.
type Measurement struct {
	PixelArea int     `json:"pixel_area"`
	Area      float64 `json:"area"`
	Unit      string  `json:"unit"`
	Score     float64 `json:"score,omitempty"`
	Point     *Point  `json:"point,omitempty"`
}

// Measure считает площадь маски с учётом калибровки.
func Measure(m *Mask, pixelsPerUnit float64, unit string) (Measurement, error) {
	area, err := Area(m, pixelsPerUnit)
	if err != nil {
		return Measurement{}, err
	}
	return Measurement{PixelArea: m.Sum(), Area: area, Unit: unit}, nil
}

// MeasureCandidates измеряет все маски, отбрасывая те, что меньше minPixels.
// Результат отсортирован по убыванию площади.
func MeasureCandidates(candidates []Candidate, pixelsPerUnit float64, unit string, minPixels int) ([]Measurement, error) {
	if !validFactor(pixelsPerUnit) {
		return nil, ErrCalibrationUnavailable
	}
	out := make([]Measurement, 0, len(candidates))
	for _, c := range candidates {
		if c.Mask == nil {
			continue
		}
		m, err := Measure(c.Mask, pixelsPerUnit, unit)
		if err != nil {
			return nil, err
		}
		if m.PixelArea == 0 || m.PixelArea < minPixels {
			continue
		}
		m.Score = c.Score
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PixelArea > out[j].PixelArea })
	return out, nil
}
