package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"depseg/internal/domain/entity"
	"depseg/internal/infrastructure/dataset"
	"depseg/internal/infrastructure/render"
	"depseg/internal/infrastructure/storage"
	"depseg/internal/nn"
	"depseg/internal/tensor"
)

func testData(n int) TrainData {
	loaders := func(task entity.Task) (train, test *dataset.Loader) {
		tr, te := dataset.Split(&fakeDataset{task: task, n: n}, 10)
		train = dataset.NewLoader(tr, dataset.LoaderOptions{BatchSize: 2, Shuffle: true, DropLast: true, Workers: 2, Seed: 1})
		test = dataset.NewLoader(te, dataset.LoaderOptions{BatchSize: 2, DropLast: true, Workers: 2})
		return train, test
	}
	dTrain, dTest := loaders(entity.TaskDepth)
	sTrain, sTest := loaders(entity.TaskSegmentation)
	return TrainData{DepthTrain: dTrain, DepthTest: dTest, SegTrain: sTrain, SegTest: sTest}
}

func values(ps []*nn.Param) [][]float64 {
	out := make([][]float64, len(ps))
	for i, p := range ps {
		out[i] = p.Value
	}
	return snapshot(out)
}

func TestTrainingService_StepUpdatesOnlyTaskHead(t *testing.T) {
	m, bb := newTestModel(t)
	backboneBefore := snapshot([][]float64{bb.Weights, bb.Bias})
	regBefore := values(m.RegHead.Params())
	segBefore := values(m.SegHead.Params())

	svc, err := NewTrainingService(m, testData(4), TrainOptions{LearningRate: 1e-3}, storage.NewFileCheckpointStore(t.TempDir(), false), nil)
	require.NoError(t, err)

	images, err := tensor.Stack([]*tensor.Tensor{testPre.Apply(testImage(1)), testPre.Apply(testImage(2))})
	require.NoError(t, err)
	batch := &entity.Batch{
		Task:   entity.TaskDepth,
		Paths:  []string{"a.png", "b.png"},
		Images: images,
		Labels: tensor.Full(2, 1, testH, testW, 2),
	}

	loss, err := svc.Step(context.Background(), batch)
	require.NoError(t, err)
	require.Greater(t, loss, 0.0)

	require.Equal(t, backboneBefore, snapshot([][]float64{bb.Weights, bb.Bias}))
	require.NotEqual(t, regBefore, values(m.RegHead.Params()))
	require.Equal(t, segBefore, values(m.SegHead.Params()))

	batch.Task = entity.TaskSegmentation
	batch.Labels = tensor.Full(2, 1, testH, testW, 1)
	_, err = svc.Step(context.Background(), batch)
	require.NoError(t, err)
	require.NotEqual(t, segBefore, values(m.SegHead.Params()))
	require.Equal(t, backboneBefore, snapshot([][]float64{bb.Weights, bb.Bias}))
}

func TestTrainingService_RunEpoch(t *testing.T) {
	m, _ := newTestModel(t)
	dir := t.TempDir()

	example := filepath.Join(dir, "example.png")
	require.NoError(t, os.WriteFile(example, mustPNG(t), 0o644))

	infer := NewInferenceService(m, testPre, render.NewHeatmap())
	opts := TrainOptions{Epochs: 1, LearningRate: 1e-3, SaveDir: dir, ExampleImage: example, InputH: testH, InputW: testW}
	svc, err := NewTrainingService(m, testData(20), opts, storage.NewFileCheckpointStore(dir, false), infer)
	require.NoError(t, err)

	reports, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)

	r := reports[0]
	require.Equal(t, 0, r.Epoch)
	require.Equal(t, filepath.Join(dir, "trained_model0.ckpt"), r.CheckpointPath)
	require.FileExists(t, r.CheckpointPath)
	require.Equal(t, filepath.Join(dir, "infer_pred0.png"), r.ExamplePath)
	require.FileExists(t, r.ExamplePath)

	require.Greater(t, r.TrainDepthLoss, 0.0)
	require.Greater(t, r.TrainSegLoss, 0.0)
	require.Greater(t, r.TestSegLoss, 0.0)
	require.GreaterOrEqual(t, r.PixelAccuracy, 0.0)
	require.LessOrEqual(t, r.PixelAccuracy, 1.0)
	require.LessOrEqual(t, r.MeanIoU, 1.0)

	ckpt, err := storage.NewFileCheckpointStore(dir, false).Load(context.Background(), r.CheckpointPath)
	require.NoError(t, err)
	require.Equal(t, testClasses, ckpt.ClassCount)
	require.Equal(t, testW, ckpt.InputW)
}

func TestTrainingService_Cancelled(t *testing.T) {
	m, _ := newTestModel(t)
	svc, err := NewTrainingService(m, testData(20), TrainOptions{Epochs: 3, LearningRate: 1e-3}, storage.NewFileCheckpointStore(t.TempDir(), false), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reports, err := svc.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, reports)
}

func TestNewTrainingService_Validation(t *testing.T) {
	m, _ := newTestModel(t)
	store := storage.NewFileCheckpointStore(t.TempDir(), false)

	_, err := NewTrainingService(nil, testData(4), TrainOptions{}, store, nil)
	require.Error(t, err)
	_, err = NewTrainingService(m, testData(4), TrainOptions{}, nil, nil)
	require.Error(t, err)
	_, err = NewTrainingService(m, TrainData{}, TrainOptions{}, store, nil)
	require.Error(t, err)
}
