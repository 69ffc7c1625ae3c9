package entity

import (
	"fmt"
	"time"
)

// EpochReport метрики одной эпохи обучения.
type EpochReport struct {
	Epoch          int
	TrainDepthLoss float64
	TrainSegLoss   float64
	TestDepthLoss  float64
	TestSegLoss    float64
	DepthRMSE      float64
	PixelAccuracy  float64
	MeanIoU        float64
	CheckpointPath string
	ExamplePath    string
	Duration       time.Duration
}

func (r EpochReport) String() string {
	return fmt.Sprintf("epoch %d: train depth=%.4f seg=%.4f | test depth=%.4f seg=%.4f rmse=%.3f acc=%.3f miou=%.3f (%s)",
		r.Epoch, r.TrainDepthLoss, r.TrainSegLoss, r.TestDepthLoss, r.TestSegLoss,
		r.DepthRMSE, r.PixelAccuracy, r.MeanIoU, r.Duration.Round(time.Millisecond))
}
