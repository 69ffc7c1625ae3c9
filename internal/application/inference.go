package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"depseg/internal/domain/entity"
	"depseg/internal/domain/port"
	"depseg/internal/infrastructure/imageio"
	"depseg/internal/model"
	"depseg/internal/tensor"
)

// InferenceService прогоняет одиночные снимки через модель и рисует
// тепловую карту глубины дороги и машин.
type InferenceService struct {
	model     *model.DualTask
	pre       imageio.Preprocess
	renderer  port.HeatmapRenderer
	highlight []uint8
}

// InferenceResult карты модели и картинка с наложением.
type InferenceResult struct {
	Prediction *entity.Prediction
	Masked     *entity.DepthMap
	Overlay    image.Image
}

// NewInferenceService создаёт сервис. Подсвечиваются entity.HighlightClasses.
func NewInferenceService(m *model.DualTask, pre imageio.Preprocess, renderer port.HeatmapRenderer) *InferenceService {
	return &InferenceService{
		model:     m,
		pre:       pre,
		renderer:  renderer,
		highlight: entity.HighlightClasses,
	}
}

// Predict возвращает карту глубины и карту классов в размере входа модели.
func (s *InferenceService) Predict(ctx context.Context, img image.Image) (*entity.Prediction, error) {
	if s.model == nil {
		return nil, errors.New("model is not configured")
	}
	out, err := s.model.Forward(ctx, s.pre.Apply(img), false)
	if err != nil {
		return nil, fmt.Errorf("forward: %w", err)
	}
	return &entity.Prediction{
		Depth:        depthMap(out.Depth),
		Segmentation: classMap(out.Segmentation),
	}, nil
}

// Visualize делает предсказание и накладывает маскированную глубину на снимок.
func (s *InferenceService) Visualize(ctx context.Context, img image.Image) (*InferenceResult, error) {
	if s.renderer == nil {
		return nil, errors.New("renderer is not configured")
	}
	pred, err := s.Predict(ctx, img)
	if err != nil {
		return nil, err
	}
	masked := HighlightDepth(pred, s.highlight)
	overlay, err := s.renderer.Overlay(img, masked)
	if err != nil {
		return nil, fmt.Errorf("render overlay: %w", err)
	}
	return &InferenceResult{Prediction: pred, Masked: masked, Overlay: overlay}, nil
}

// VisualizeBytes принимает закодированный снимок и возвращает PNG с наложением.
func (s *InferenceService) VisualizeBytes(ctx context.Context, photo []byte) ([]byte, *InferenceResult, error) {
	img, err := imageio.Decode(photo)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.Visualize(ctx, img)
	if err != nil {
		return nil, nil, err
	}
	data, err := imageio.Encode(res.Overlay, "png")
	if err != nil {
		return nil, nil, fmt.Errorf("encode overlay: %w", err)
	}
	return data, res, nil
}

// VisualizeFile читает снимок из inPath и пишет наложение прямо в outPath.
func (s *InferenceService) VisualizeFile(ctx context.Context, inPath, outPath string) (*InferenceResult, error) {
	img, err := imageio.Load(inPath)
	if err != nil {
		return nil, err
	}
	res, err := s.Visualize(ctx, img)
	if err != nil {
		return nil, err
	}
	if err := imageio.Save(outPath, res.Overlay); err != nil {
		return nil, fmt.Errorf("save overlay: %w", err)
	}
	return res, nil
}

// HighlightDepth переворачивает глубину (max - d), оставляет только пиксели
// классов keep, а нулевые значения превращает в NaN.
// Пиксель с максимальной глубиной тоже становится NaN.
func HighlightDepth(pred *entity.Prediction, keep []uint8) *entity.DepthMap {
	d := pred.Depth
	out := entity.NewDepthMap(d.Width, d.Height)

	var keepSet [256]bool
	for _, c := range keep {
		keepSet[c] = true
	}

	hi, ok := float32(0), false
	for _, v := range d.Values {
		if entity.IsFinite(v) && (!ok || v > hi) {
			hi, ok = v, true
		}
	}

	nan := float32(math.NaN())
	for i, v := range d.Values {
		cls := pred.Segmentation.Classes[i]
		r := hi - v
		if !keepSet[cls] || r == 0 || !entity.IsFinite(r) {
			out.Values[i] = nan
			continue
		}
		out.Values[i] = r
	}
	return out
}

// depthMap берёт канал 0 первого элемента батча.
func depthMap(t *tensor.Tensor) *entity.DepthMap {
	m := entity.NewDepthMap(t.Shape.W, t.Shape.H)
	for i, v := range t.Plane(0, 0) {
		m.Values[i] = float32(v)
	}
	return m
}

// classMap argmax по каналам первого элемента батча.
func classMap(t *tensor.Tensor) *entity.SegmentationMap {
	s := t.Shape
	m := entity.NewSegmentationMap(s.W, s.H, s.C)
	best := append([]float64(nil), t.Plane(0, 0)...)
	for c := 1; c < s.C; c++ {
		for i, v := range t.Plane(0, c) {
			if v > best[i] {
				best[i] = v
				m.Classes[i] = uint8(c)
			}
		}
	}
	return m
}
