package app

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"area-bot/internal/domain/entity"
	"area-bot/internal/infrastructure/staging"
	"area-bot/internal/infrastructure/storage"
	"area-bot/internal/infrastructure/vision"
)

type fakeSegmenter struct {
	candidates []entity.Candidate
	err        error

	calls     int
	onCall    func()
	points    []entity.Point
	stagedOK  bool
	lastPath  string
	generated bool
}

func (f *fakeSegmenter) Segment(ctx context.Context, imagePath string, points []entity.Point) ([]entity.Candidate, error) {
	f.calls++
	if f.onCall != nil {
		f.onCall()
	}
	f.points = points
	f.lastPath = imagePath
	_, statErr := os.Stat(imagePath)
	f.stagedOK = statErr == nil
	return f.candidates, f.err
}

func (f *fakeSegmenter) Generate(ctx context.Context, imagePath string) ([]entity.Candidate, error) {
	f.calls++
	f.generated = true
	f.lastPath = imagePath
	_, statErr := os.Stat(imagePath)
	f.stagedOK = statErr == nil
	return f.candidates, f.err
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// rowMask строит маску 20x10 с заданными суммами по строкам.
func rowMask(sums ...int) *entity.Mask {
	m := entity.NewMask(20, 10)
	for y, s := range sums {
		for x := 0; x < s; x++ {
			m.Set(x, y, true)
		}
	}
	return m
}

type fixture struct {
	svc      *MeasurementService
	sessions *SessionService
	seg      *fakeSegmenter
	session  *entity.Session
}

func newFixture(t *testing.T, displayWidth int) *fixture {
	t.Helper()
	sessions := NewSessionService(storage.NewMemorySessionRepository(), "µm")
	stager, err := staging.New(t.TempDir())
	require.NoError(t, err)
	seg := &fakeSegmenter{}
	svc := NewMeasurementService(sessions, seg, vision.NewRenderer(), stager, displayWidth)

	session, err := sessions.Create(context.Background(), "")
	require.NoError(t, err)

	return &fixture{svc: svc, sessions: sessions, seg: seg, session: session}
}

func TestMeasurementService_CalibrateThenMeasure(t *testing.T) {
	f := newFixture(t, 700)
	ctx := context.Background()
	img := Upload{Name: "scale.png", Data: testPNG(t, 20, 10)}

	f.seg.candidates = []entity.Candidate{{Mask: rowMask(0, 0, 4, 6, 5), Score: 0.9}, {Mask: rowMask(1)}}
	out, err := f.svc.Calibrate(ctx, f.session.ID, img, Click{X: 3, Y: 3})
	require.NoError(t, err)
	require.Equal(t, 5.0, out.PixelsPerUnit)
	require.Equal(t, entity.Point{X: 3, Y: 3}, out.Point)
	require.NotEmpty(t, out.Overlay)
	require.True(t, f.seg.stagedOK)
	require.Equal(t, []entity.Point{{X: 3, Y: 3}}, f.seg.points)

	_, err = os.Stat(f.seg.lastPath)
	require.True(t, os.IsNotExist(err), "staged file must be removed")

	stored, err := f.sessions.Get(ctx, f.session.ID)
	require.NoError(t, err)
	require.Equal(t, 5.0, stored.PixelsPerUnit)
	require.Equal(t, entity.StateCalibrated, stored.State)

	// 10 строк по 20 пикселей = 200, площадь 200 / 25 = 8
	full := entity.NewMask(20, 10)
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			full.Set(x, y, true)
		}
	}
	f.seg.candidates = []entity.Candidate{{Mask: full, Score: 0.8}}
	res, err := f.svc.Measure(ctx, f.session.ID, Upload{Name: "particle.png", Data: testPNG(t, 20, 10)}, Click{X: 10, Y: 5})
	require.NoError(t, err)
	require.Equal(t, 200, res.Measurement.PixelArea)
	require.InDelta(t, 8.0, res.Measurement.Area, 1e-9)
	require.Equal(t, "µm", res.Measurement.Unit)
	require.Equal(t, 0.8, res.Measurement.Score)
	require.Equal(t, &entity.Point{X: 10, Y: 5}, res.Measurement.Point)
}

func TestMeasurementService_KeepsChangesMadeDuringSegmentation(t *testing.T) {
	f := newFixture(t, 700)
	ctx := context.Background()
	img := Upload{Name: "scale.png", Data: testPNG(t, 20, 10)}

	f.seg.candidates = []entity.Candidate{{Mask: rowMask(0, 0, 4, 6, 5)}}
	f.seg.onCall = func() {
		_, err := f.sessions.SetUnit(ctx, f.session.ID, "nm")
		require.NoError(t, err)
	}
	out, err := f.svc.Calibrate(ctx, f.session.ID, img, Click{X: 3, Y: 3})
	require.NoError(t, err)
	require.Equal(t, "nm", out.Session.Unit)

	stored, err := f.sessions.Get(ctx, f.session.ID)
	require.NoError(t, err)
	require.Equal(t, "nm", stored.Unit)
	require.Equal(t, 5.0, stored.PixelsPerUnit)

	// повторная калибровка во время измерения: площадь считается по новой
	f.seg.candidates = []entity.Candidate{{Mask: rowMask(10, 10)}}
	f.seg.onCall = func() {
		_, err := f.sessions.Update(ctx, f.session.ID, func(s *entity.Session) error {
			return s.Calibrate(2, f.svc.now())
		})
		require.NoError(t, err)
	}
	res, err := f.svc.Measure(ctx, f.session.ID, Upload{Name: "p.png", Data: testPNG(t, 20, 10)}, Click{X: 1, Y: 1})
	require.NoError(t, err)
	require.InDelta(t, 5.0, res.Measurement.Area, 1e-9)
	require.Equal(t, "nm", res.Measurement.Unit)
}

func TestMeasurementService_MeasureBeforeCalibration(t *testing.T) {
	f := newFixture(t, 700)
	_, err := f.svc.Measure(context.Background(), f.session.ID, Upload{Name: "p.png", Data: testPNG(t, 20, 10)}, Click{X: 1, Y: 1})
	require.ErrorIs(t, err, entity.ErrCalibrationUnavailable)
	require.Zero(t, f.seg.calls)
}

func TestMeasurementService_EmptyCalibrationMask(t *testing.T) {
	f := newFixture(t, 700)
	f.seg.candidates = []entity.Candidate{{Mask: entity.NewMask(20, 10)}}

	_, err := f.svc.Calibrate(context.Background(), f.session.ID, Upload{Name: "s.png", Data: testPNG(t, 20, 10)}, Click{X: 1, Y: 1})
	require.ErrorIs(t, err, entity.ErrEmptyCalibrationMask)
	require.True(t, IsRejection(err))

	stored, err := f.sessions.Get(context.Background(), f.session.ID)
	require.NoError(t, err)
	require.False(t, stored.IsCalibrated())
}

func TestMeasurementService_RescalesClick(t *testing.T) {
	f := newFixture(t, 10) // изображение 20x10 показывается в два раза меньше
	f.seg.candidates = []entity.Candidate{{Mask: rowMask(2)}}

	out, err := f.svc.Calibrate(context.Background(), f.session.ID, Upload{Name: "s.png", Data: testPNG(t, 20, 10)}, Click{X: 3.5, Y: 2})
	require.NoError(t, err)
	require.Equal(t, entity.Point{X: 7, Y: 4}, out.Point)

	out, err = f.svc.Calibrate(context.Background(), f.session.ID, Upload{Name: "s.png", Data: testPNG(t, 20, 10)}, Click{X: 3, Y: 2, ImageSpace: true})
	require.NoError(t, err)
	require.Equal(t, entity.Point{X: 3, Y: 2}, out.Point)
}

func TestMeasurementService_OutOfBoundsClick(t *testing.T) {
	f := newFixture(t, 10)
	f.seg.candidates = []entity.Candidate{{Mask: rowMask(2)}}

	_, err := f.svc.Calibrate(context.Background(), f.session.ID, Upload{Name: "s.png", Data: testPNG(t, 20, 10)}, Click{X: 10, Y: 1})
	require.ErrorIs(t, err, entity.ErrOutOfBoundsPoint)
	require.Zero(t, f.seg.calls)
}

func TestMeasurementService_SegmenterFailureReleasesFile(t *testing.T) {
	f := newFixture(t, 700)
	f.seg.err = errors.New("oracle down")

	_, err := f.svc.Calibrate(context.Background(), f.session.ID, Upload{Name: "s.png", Data: testPNG(t, 20, 10)}, Click{X: 1, Y: 1})
	require.ErrorContains(t, err, "oracle down")
	require.False(t, IsRejection(err))
	require.True(t, f.seg.stagedOK)

	_, statErr := os.Stat(f.seg.lastPath)
	require.True(t, os.IsNotExist(statErr))
}

func TestMeasurementService_MaskSizeMismatch(t *testing.T) {
	f := newFixture(t, 700)
	f.seg.candidates = []entity.Candidate{{Mask: entity.NewMask(5, 5)}}

	_, err := f.svc.Calibrate(context.Background(), f.session.ID, Upload{Name: "s.png", Data: testPNG(t, 20, 10)}, Click{X: 1, Y: 1})
	require.ErrorIs(t, err, entity.ErrMaskSizeMismatch)
}

func TestMeasurementService_NoMask(t *testing.T) {
	f := newFixture(t, 700)
	_, err := f.svc.Calibrate(context.Background(), f.session.ID, Upload{Name: "s.png", Data: testPNG(t, 20, 10)}, Click{X: 1, Y: 1})
	require.ErrorIs(t, err, entity.ErrNoMask)
}

func TestMeasurementService_MeasureAll(t *testing.T) {
	f := newFixture(t, 700)
	ctx := context.Background()
	_, err := f.sessions.Update(ctx, f.session.ID, func(s *entity.Session) error {
		return s.Calibrate(2, f.svc.now())
	})
	require.NoError(t, err)

	f.seg.candidates = []entity.Candidate{
		{Mask: rowMask(4), Score: 0.3},
		{Mask: rowMask(1)},
		{Mask: rowMask(20, 20), Score: 0.9},
	}
	results, session, err := f.svc.MeasureAll(ctx, f.session.ID, Upload{Name: "p.png", Data: testPNG(t, 20, 10)}, 2)
	require.NoError(t, err)
	require.True(t, f.seg.generated)
	require.Equal(t, "µm", session.Unit)
	require.Len(t, results, 2)
	require.Equal(t, 40, results[0].PixelArea)
	require.InDelta(t, 10.0, results[0].Area, 1e-9)
	require.Equal(t, 4, results[1].PixelArea)

	_, statErr := os.Stat(f.seg.lastPath)
	require.True(t, os.IsNotExist(statErr))
}

func TestMeasurementService_MeasureAllNeedsCalibration(t *testing.T) {
	f := newFixture(t, 700)
	_, _, err := f.svc.MeasureAll(context.Background(), f.session.ID, Upload{Name: "p.png", Data: testPNG(t, 20, 10)}, 0)
	require.ErrorIs(t, err, entity.ErrCalibrationUnavailable)
}

func TestMeasurementService_Preview(t *testing.T) {
	f := newFixture(t, 10)
	p, err := f.svc.Preview(Upload{Data: testPNG(t, 20, 10)})
	require.NoError(t, err)
	require.Equal(t, entity.Display{Width: 10, Height: 5, ScaleFactor: 2}, p.Display)
}
