package segmenter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"area-bot/internal/domain/entity"
	"area-bot/internal/domain/port"
	"area-bot/internal/logger"
)

const maxErrorBody = 512

type segmentRequest struct {
	Image  string   `json:"image"`
	Points [][2]int `json:"points,omitempty"`
	Labels []int    `json:"labels,omitempty"`
}

type maskPayload struct {
	PNG   string  `json:"png"`
	Score float64 `json:"score"`
}

type segmentResponse struct {
	Masks []maskPayload `json:"masks"`
}

// Client обращается к HTTP-сервису модели сегментации.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient создаёт клиента с таймаутом на каждый вызов.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Segment запрашивает маски объекта под точками. Все точки помечены как
// принадлежащие объекту.
func (c *Client) Segment(ctx context.Context, imagePath string, points []entity.Point) ([]entity.Candidate, error) {
	req, err := newRequest(imagePath)
	if err != nil {
		return nil, err
	}
	for _, p := range points {
		req.Points = append(req.Points, [2]int{p.X, p.Y})
		req.Labels = append(req.Labels, 1)
	}
	return c.call(ctx, "/v1/segment", req)
}

// Generate запрашивает автоматическую разметку всех объектов.
func (c *Client) Generate(ctx context.Context, imagePath string) ([]entity.Candidate, error) {
	req, err := newRequest(imagePath)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, "/v1/generate", req)
}

func newRequest(imagePath string) (*segmentRequest, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read staged image: %w", err)
	}
	return &segmentRequest{Image: base64.StdEncoding.EncodeToString(data)}, nil
}

func (c *Client) call(ctx context.Context, path string, body *segmentRequest) ([]entity.Candidate, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call segmenter: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("segmenter %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	var out segmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Masks) == 0 {
		return nil, entity.ErrNoMask
	}

	candidates := make([]entity.Candidate, 0, len(out.Masks))
	for i, m := range out.Masks {
		mask, err := decodeMask(m.PNG)
		if err != nil {
			return nil, fmt.Errorf("mask %d: %w", i, err)
		}
		candidates = append(candidates, entity.Candidate{Mask: mask, Score: m.Score})
	}

	logger.L().Debug("segmenter call",
		zap.String("path", path),
		zap.Int("masks", len(candidates)),
		zap.Duration("cost", time.Since(start)))

	return candidates, nil
}

// decodeMask превращает PNG в маску: любой ненулевой пиксель принадлежит объекту.
func decodeMask(encoded string) (*entity.Mask, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	return MaskFromImage(img), nil
}

// MaskFromImage строит маску из изображения по ненулевым пикселям.
func MaskFromImage(img image.Image) *entity.Mask {
	b := img.Bounds()
	mask := entity.NewMask(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r|g|bl != 0 {
				mask.Set(x-b.Min.X, y-b.Min.Y, true)
			}
		}
	}
	return mask
}

var _ port.Segmenter = (*Client)(nil)
