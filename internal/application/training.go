package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"depseg/internal/domain/entity"
	"depseg/internal/domain/port"
	"depseg/internal/model"
	"depseg/internal/nn"
)

// TrainData загрузчики обучающих и тестовых частей двух датасетов.
type TrainData struct {
	DepthTrain port.BatchLoader
	DepthTest  port.BatchLoader
	SegTrain   port.BatchLoader
	SegTest    port.BatchLoader
}

// TrainOptions параметры обучения.
type TrainOptions struct {
	Epochs       int
	LearningRate float64
	SaveDir      string
	// ExampleImage снимок, для которого после каждой эпохи сохраняется
	// infer_pred<epoch>.png. Пусто - не сохранять.
	ExampleImage string
	InputH       int
	InputW       int
}

// TrainingService обучает головы модели. Бэкбон не обучается.
type TrainingService struct {
	model  *model.DualTask
	data   TrainData
	opts   TrainOptions
	store  port.CheckpointStore
	infer  *InferenceService
	regOpt *nn.Adam
	segOpt *nn.Adam
}

// NewTrainingService создаёт сервис. Для каждой головы свой Adam: шаг делает
// только голова, получившая градиент на текущем батче.
func NewTrainingService(m *model.DualTask, data TrainData, opts TrainOptions, store port.CheckpointStore, infer *InferenceService) (*TrainingService, error) {
	if m == nil {
		return nil, errors.New("model is not configured")
	}
	if store == nil {
		return nil, errors.New("checkpoint store is not configured")
	}
	if data.DepthTrain == nil || data.SegTrain == nil {
		return nil, errors.New("train loaders are not configured")
	}
	return &TrainingService{
		model:  m,
		data:   data,
		opts:   opts,
		store:  store,
		infer:  infer,
		regOpt: nn.NewAdam(m.RegHead.Params(), opts.LearningRate),
		segOpt: nn.NewAdam(m.SegHead.Params(), opts.LearningRate),
	}, nil
}

// Run обучает Epochs эпох и возвращает отчёты по ним.
func (s *TrainingService) Run(ctx context.Context) ([]entity.EpochReport, error) {
	log.Printf("Train batches per epoch: depth=%d seg=%d", s.data.DepthTrain.Len(), s.data.SegTrain.Len())

	reports := make([]entity.EpochReport, 0, s.opts.Epochs)
	for epoch := 0; epoch < s.opts.Epochs; epoch++ {
		report, err := s.RunEpoch(ctx, epoch)
		if err != nil {
			return reports, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		log.Printf("%s", report)
		reports = append(reports, report)
	}
	return reports, nil
}

// RunEpoch одна эпоха: обучение, оценка, чекпоинт и пример предсказания.
func (s *TrainingService) RunEpoch(ctx context.Context, epoch int) (entity.EpochReport, error) {
	started := time.Now()
	report := entity.EpochReport{Epoch: epoch}

	var err error
	report.TrainDepthLoss, report.TrainSegLoss, err = s.trainEpoch(ctx)
	if err != nil {
		return report, err
	}

	if err := s.evaluate(ctx, &report); err != nil {
		return report, err
	}

	ckpt := s.model.Checkpoint(epoch, s.opts.InputH, s.opts.InputW)
	if report.CheckpointPath, err = s.store.Save(ctx, ckpt); err != nil {
		return report, fmt.Errorf("save checkpoint: %w", err)
	}

	if s.opts.ExampleImage != "" && s.infer != nil {
		out := filepath.Join(s.opts.SaveDir, fmt.Sprintf("infer_pred%d.png", epoch))
		if _, err := s.infer.VisualizeFile(ctx, s.opts.ExampleImage, out); err != nil {
			return report, fmt.Errorf("example prediction: %w", err)
		}
		report.ExamplePath = out
	}

	report.Duration = time.Since(started)
	return report, nil
}

// trainEpoch чередует батчи глубины и сегментации, пока оба есть,
// затем дообучает на оставшихся батчах более длинного загрузчика.
func (s *TrainingService) trainEpoch(ctx context.Context) (depthLoss, segLoss float64, err error) {
	depthIt := s.data.DepthTrain.Iterate(ctx)
	defer depthIt.Close()
	segIt := s.data.SegTrain.Iterate(ctx)
	defer segIt.Close()

	var depthSum, segSum float64
	var depthN, segN int
	its := []port.BatchIterator{depthIt, segIt}
	done := []bool{false, false}

	for !done[0] || !done[1] {
		for i, it := range its {
			if done[i] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return 0, 0, err
			}
			b, err := it.Next()
			if errors.Is(err, io.EOF) {
				done[i] = true
				continue
			}
			if err != nil {
				return 0, 0, err
			}
			loss, err := s.Step(ctx, b)
			if err != nil {
				return 0, 0, err
			}
			if b.Task == entity.TaskDepth {
				depthSum += loss
				depthN++
			} else {
				segSum += loss
				segN++
			}
		}
	}

	return ratio(depthSum, depthN), ratio(segSum, segN), nil
}

// Step один шаг оптимизации на батче. Градиент получает только голова
// задачи батча.
func (s *TrainingService) Step(ctx context.Context, b *entity.Batch) (float64, error) {
	out, err := s.model.Forward(ctx, b.Images, true)
	if err != nil {
		return 0, err
	}

	switch b.Task {
	case entity.TaskDepth:
		loss, grad, err := nn.MaskedMSE(out.Depth, b.Labels)
		if err != nil {
			return 0, err
		}
		s.regOpt.ZeroGrad()
		if err := s.model.Backward(grad, nil); err != nil {
			return 0, err
		}
		s.regOpt.Step()
		return loss, nil
	case entity.TaskSegmentation:
		loss, grad, err := nn.CrossEntropy(out.Segmentation, b.Labels)
		if err != nil {
			return 0, err
		}
		s.segOpt.ZeroGrad()
		if err := s.model.Backward(nil, grad); err != nil {
			return 0, err
		}
		s.segOpt.Step()
		return loss, nil
	default:
		return 0, fmt.Errorf("unknown task %q", b.Task)
	}
}

// evaluate считает метрики на тестовых частях в режиме eval.
func (s *TrainingService) evaluate(ctx context.Context, report *entity.EpochReport) error {
	depth := &depthMetrics{}
	if s.data.DepthTest != nil {
		err := s.eachBatch(ctx, s.data.DepthTest, func(b *entity.Batch, out *model.Output) error {
			loss, _, err := nn.MaskedMSE(out.Depth, b.Labels)
			if err != nil {
				return err
			}
			depth.add(out.Depth, b.Labels, loss)
			return nil
		})
		if err != nil {
			return fmt.Errorf("evaluate depth: %w", err)
		}
	}

	seg := newSegMetrics(s.model.ClassCount)
	if s.data.SegTest != nil {
		err := s.eachBatch(ctx, s.data.SegTest, func(b *entity.Batch, out *model.Output) error {
			loss, _, err := nn.CrossEntropy(out.Segmentation, b.Labels)
			if err != nil {
				return err
			}
			seg.add(out.Segmentation, b.Labels, loss)
			return nil
		})
		if err != nil {
			return fmt.Errorf("evaluate segmentation: %w", err)
		}
	}

	report.TestDepthLoss = depth.loss()
	report.DepthRMSE = depth.rmse()
	report.TestSegLoss = seg.loss()
	report.PixelAccuracy = seg.pixelAccuracy()
	report.MeanIoU = seg.meanIoU()
	return nil
}

func (s *TrainingService) eachBatch(ctx context.Context, loader port.BatchLoader, fn func(*entity.Batch, *model.Output) error) error {
	it := loader.Iterate(ctx)
	defer it.Close()
	for {
		b, err := it.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		out, err := s.model.Forward(ctx, b.Images, false)
		if err != nil {
			return err
		}
		if err := fn(b, out); err != nil {
			return err
		}
	}
}

func ratio(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
