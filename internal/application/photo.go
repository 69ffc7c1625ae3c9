package app

import (
	"context"
	"errors"
	"fmt"

	"depseg/internal/domain/entity"
)

// ErrBusy предыдущий снимок пользователя ещё обрабатывается.
var ErrBusy = errors.New("previous photo is still processing")

// PhotoService обрабатывает снимки, присланные в бота.
type PhotoService struct {
	users     *UserService
	inference *InferenceService
}

// PhotoOutput картинка с наложением и краткая сводка по сцене.
type PhotoOutput struct {
	Overlay      []byte
	RoadFraction float64
	CarFraction  float64
	// Ближняя и дальняя глубина среди подсвеченных пикселей, HasRange == false
	// если дорога и машины не найдены.
	Nearest  float32
	Farthest float32
	HasRange bool
	// Processed сколько снимков пользователь прислал всего.
	Processed int
}

func NewPhotoService(users *UserService, inference *InferenceService) *PhotoService {
	return &PhotoService{users: users, inference: inference}
}

// ProcessPhoto прогоняет снимок через модель. На время обработки пользователь
// в состоянии StateProcessing, после возвращается в главное меню.
func (s *PhotoService) ProcessPhoto(ctx context.Context, userID, chatID int64, photo []byte) (*PhotoOutput, error) {
	if s.inference == nil {
		return nil, errors.New("inference is not configured")
	}
	user, err := s.users.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	if !user.CanSubmitPhoto() {
		return nil, ErrBusy
	}
	if _, err := s.users.SetState(ctx, userID, chatID, entity.StateProcessing); err != nil {
		return nil, err
	}
	// состояние возвращаем даже при отменённом ctx
	defer s.users.SetState(context.WithoutCancel(ctx), userID, chatID, entity.StateMainMenu)

	data, res, err := s.inference.VisualizeBytes(ctx, photo)
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}

	out := &PhotoOutput{
		Overlay:      data,
		RoadFraction: res.Prediction.Segmentation.Fraction(entity.ClassRoad),
		CarFraction:  res.Prediction.Segmentation.Fraction(entity.ClassCar),
	}
	for i, v := range res.Masked.Values {
		if !entity.IsFinite(v) {
			continue
		}
		d := res.Prediction.Depth.Values[i]
		if !out.HasRange || d < out.Nearest {
			out.Nearest = d
		}
		if !out.HasRange || d > out.Farthest {
			out.Farthest = d
		}
		out.HasRange = true
	}

	if out.Processed, err = s.users.RecordPrediction(ctx, userID); err != nil {
		return nil, err
	}
	return out, nil
}
