package commands

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"area-bot/internal/domain/entity"
	"area-bot/internal/domain/port"
)

type scriptedSegmenter struct {
	segment  [][]entity.Candidate
	generate []entity.Candidate
	points   []entity.Point
}

func (s *scriptedSegmenter) Segment(ctx context.Context, imagePath string, points []entity.Point) ([]entity.Candidate, error) {
	s.points = append(s.points, points...)
	next := s.segment[0]
	s.segment = s.segment[1:]
	return next, nil
}

func (s *scriptedSegmenter) Generate(ctx context.Context, imagePath string) ([]entity.Candidate, error) {
	return s.generate, nil
}

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func filled(w, h int, sums ...int) *entity.Mask {
	m := entity.NewMask(w, h)
	for y, s := range sums {
		for x := 0; x < s; x++ {
			m.Set(x, y, true)
		}
	}
	return m
}

func runWith(t *testing.T, seg port.Segmenter, args ...string) (string, error) {
	t.Helper()
	prev := newSegmenter
	newSegmenter = func(string, time.Duration) port.Segmenter { return seg }
	t.Cleanup(func() { newSegmenter = prev })

	root := newRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := run(root)
	return out.String(), err
}

func TestParsePoint(t *testing.T) {
	c, err := parsePoint("12, 7")
	require.NoError(t, err)
	require.Equal(t, 12.0, c.X)
	require.Equal(t, 7.0, c.Y)
	require.True(t, c.ImageSpace)

	for _, bad := range []string{"", "1", "1,2,3", "x,1", "1,y"} {
		_, err := parsePoint(bad)
		require.Error(t, err, bad)
	}
}

func TestMeasureCommand(t *testing.T) {
	dir := t.TempDir()
	scale := writePNG(t, dir, "scale.png", 20, 10)
	particle := writePNG(t, dir, "particle.png", 20, 10)
	overlay := filepath.Join(dir, "overlay.jpg")

	seg := &scriptedSegmenter{segment: [][]entity.Candidate{
		{{Mask: filled(20, 10, 0, 0, 4, 6, 5)}},
		{{Mask: filled(20, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10)}},
	}}

	out, err := runWith(t, seg, "measure",
		"--scale", scale, "--scale-point", "3,3",
		"--image", particle, "--point", "15,8",
		"--unit", "µm", "--overlay", overlay)
	require.NoError(t, err)
	require.Contains(t, out, "Pixels per µm: 5.0000")
	require.Contains(t, out, "Area: 4 µm^2 (100 px)")
	require.Equal(t, []entity.Point{{X: 3, Y: 3}, {X: 15, Y: 8}}, seg.points)

	_, err = os.Stat(overlay)
	require.NoError(t, err)

	_, err = os.Stat(scratchDir)
	require.True(t, os.IsNotExist(err))
}

func TestMeasureCommand_OutOfBounds(t *testing.T) {
	dir := t.TempDir()
	scale := writePNG(t, dir, "scale.png", 20, 10)
	particle := writePNG(t, dir, "particle.png", 20, 10)

	seg := &scriptedSegmenter{segment: [][]entity.Candidate{{{Mask: filled(20, 10, 3)}}}}
	_, err := runWith(t, seg, "measure",
		"--scale", scale, "--scale-point", "3,3",
		"--image", particle, "--point", "40,8")
	require.ErrorIs(t, err, entity.ErrOutOfBoundsPoint)

	require.NotEmpty(t, scratchDir)
	_, statErr := os.Stat(scratchDir)
	require.True(t, os.IsNotExist(statErr), "scratch dir must be removed after a failed run")
}

func TestAutoCommand(t *testing.T) {
	dir := t.TempDir()
	scale := writePNG(t, dir, "scale.png", 20, 10)
	particle := writePNG(t, dir, "particle.png", 20, 10)

	seg := &scriptedSegmenter{
		segment: [][]entity.Candidate{{{Mask: filled(20, 10, 2, 2)}}},
		generate: []entity.Candidate{
			{Mask: filled(20, 10, 1), Score: 0.2},
			{Mask: filled(20, 10, 8, 8), Score: 0.95},
		},
	}

	out, err := runWith(t, seg, "auto",
		"--scale", scale, "--scale-point", "0,0",
		"--image", particle, "--min-pixels", "2", "--unit", "mm")
	require.NoError(t, err)
	require.Contains(t, out, "Objects: 1")
	require.Contains(t, out, "1\t4 mm^2\t16 px\tscore 0.950")
}
