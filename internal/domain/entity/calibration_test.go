package entity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// maskWithRowSums строит маску, где в строке i отмечено sums[i] пикселей слева.
func maskWithRowSums(width int, sums ...int) *Mask {
	m := NewMask(width, len(sums))
	for y, s := range sums {
		for x := 0; x < s; x++ {
			m.Set(x, y, true)
		}
	}
	return m
}

func TestPixelsPerUnit_EmptyMask(t *testing.T) {
	_, err := PixelsPerUnit(NewMask(10, 10))
	require.ErrorIs(t, err, ErrEmptyCalibrationMask)

	_, err = PixelsPerUnit(NewMask(0, 0))
	require.ErrorIs(t, err, ErrEmptyCalibrationMask)
}

func TestPixelsPerUnit_AveragesNonEmptyRows(t *testing.T) {
	m := maskWithRowSums(8, 0, 0, 4, 6, 5, 0)
	require.Equal(t, []int{0, 0, 4, 6, 5, 0}, m.RowSums())

	ppu, err := PixelsPerUnit(m)
	require.NoError(t, err)
	require.Equal(t, 5.0, ppu)
}

func TestArea(t *testing.T) {
	m := maskWithRowSums(50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50)
	require.Equal(t, 500, m.Sum())

	area, err := Area(m, 5.0)
	require.NoError(t, err)
	require.InDelta(t, 20.0, area, 1e-9)
}

func TestArea_CalibrationUnavailable(t *testing.T) {
	m := maskWithRowSums(4, 4)
	for _, ppu := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := Area(m, ppu)
		require.ErrorIs(t, err, ErrCalibrationUnavailable, "ppu %v", ppu)

		_, err = MeasureCandidates([]Candidate{{Mask: m}}, ppu, "mm", 0)
		require.ErrorIs(t, err, ErrCalibrationUnavailable, "ppu %v", ppu)
	}
}

func TestMeasureCandidates(t *testing.T) {
	candidates := []Candidate{
		{Mask: maskWithRowSums(10, 2), Score: 0.5},
		{Mask: maskWithRowSums(10, 10, 10), Score: 0.9},
		{Mask: NewMask(10, 1), Score: 0.1},
		{Mask: nil},
		{Mask: maskWithRowSums(10, 5), Score: 0.7},
	}

	got, err := MeasureCandidates(candidates, 2, "mm", 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 20, got[0].PixelArea)
	require.InDelta(t, 5.0, got[0].Area, 1e-9)
	require.Equal(t, 0.9, got[0].Score)
	require.Equal(t, 5, got[1].PixelArea)
	require.Equal(t, "mm", got[1].Unit)

	_, err = MeasureCandidates(candidates, 0, "mm", 0)
	require.ErrorIs(t, err, ErrCalibrationUnavailable)
}

func TestMask_SetAndAt(t *testing.T) {
	m := NewMask(2, 2)
	m.Set(0, 0, true)
	m.Set(0, 1, true)
	m.Set(1, 1, true)
	m.Set(5, 5, true)
	require.Equal(t, 3, m.Sum())
	require.Equal(t, []int{1, 2}, m.RowSums())
	require.True(t, m.At(1, 1))
	require.False(t, m.At(5, 5))
}
