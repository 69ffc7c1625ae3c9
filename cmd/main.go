package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"depseg/config"
	telegram "depseg/internal/api"
	app "depseg/internal/application"
	"depseg/internal/container"
	"depseg/internal/domain/entity"
	"depseg/internal/domain/port"
	"depseg/internal/infrastructure/backbone"
	"depseg/internal/infrastructure/dataset"
	"depseg/internal/infrastructure/imageio"
	"depseg/internal/infrastructure/render"
	"depseg/internal/infrastructure/storage"
	"depseg/internal/model"
	"depseg/internal/tensor"
)

// testDiv первая 1/testDiv часть каждого датасета уходит в тест.
const testDiv = 10

func main() {
	job := flag.String("job", "train", "train, infer, model_summary or bot")
	saveDir := flag.String("train_save_dir", "train-history", "directory for checkpoints and example predictions")
	exampleImage := flag.String("train_example_image_path", "", "image to visualise after every epoch")
	inferImage := flag.String("infer_image_path", "", "image to run inference on")
	inferModel := flag.String("infer_model_path", "", "checkpoint to load for infer and bot")
	inferOutput := flag.String("infer_output_path", "infer_pred.png", "where to write the overlay")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *job {
	case "train":
		err = runTrain(ctx, cfg, *saveDir, *exampleImage)
	case "infer":
		err = runInfer(ctx, cfg, *inferModel, *inferImage, *inferOutput)
	case "model_summary":
		err = runSummary(cfg)
	case "bot":
		err = runBot(ctx, cfg, *inferModel)
	default:
		err = fmt.Errorf("unknown job %q", *job)
	}
	if err != nil {
		log.Fatalf("%s: %v", *job, err)
	}
}

func openBackbone(cfg *config.Config, kind string) (port.Backbone, error) {
	return backbone.Open(backbone.Config{
		Kind:        kind,
		ModelPath:   cfg.BackboneModel,
		LibraryPath: cfg.ORTLibrary,
		Seed:        cfg.Seed,
	})
}

func newModel(cfg *config.Config) (*model.DualTask, port.Backbone, error) {
	probe, err := model.ParseProbeKind(cfg.Probe)
	if err != nil {
		return nil, nil, err
	}
	bb, err := openBackbone(cfg, cfg.Backbone)
	if err != nil {
		return nil, nil, err
	}
	m, err := model.New(bb, model.Options{Probe: probe, ClassCount: cfg.Classes, Seed: cfg.Seed})
	if err != nil {
		bb.Close()
		return nil, nil, err
	}
	return m, bb, nil
}

// loadModel восстанавливает модель из чекпоинта; бэкбон берётся из чекпоинта.
func loadModel(ctx context.Context, cfg *config.Config, path string) (*model.DualTask, port.Backbone, imageio.Preprocess, error) {
	pre := imageio.Preprocess{Width: cfg.InputWidth, Height: cfg.InputHeight}
	ckpt, err := storage.NewFileCheckpointStore(filepath.Dir(path), cfg.CheckpointHalf).Load(ctx, path)
	if err != nil {
		return nil, nil, pre, err
	}
	bb, err := openBackbone(cfg, ckpt.Backbone)
	if err != nil {
		return nil, nil, pre, err
	}
	m, err := model.FromCheckpoint(bb, ckpt)
	if err != nil {
		bb.Close()
		return nil, nil, pre, err
	}
	if ckpt.InputH > 0 && ckpt.InputW > 0 {
		pre = imageio.Preprocess{Width: ckpt.InputW, Height: ckpt.InputH}
	}
	log.Printf("Loaded %s (epoch %d, backbone %s, probe %s)", path, ckpt.Epoch, ckpt.Backbone, ckpt.Probe)
	return m, bb, pre, nil
}

func runTrain(ctx context.Context, cfg *config.Config, saveDir, exampleImage string) error {
	pre := imageio.Preprocess{Width: cfg.InputWidth, Height: cfg.InputHeight}

	depthSet, err := dataset.NewKITTIDepth(cfg.KITTIDepthRGB, cfg.KITTIDepthLabels, pre)
	if err != nil {
		return err
	}
	segSet, err := dataset.NewKITTISemantic(cfg.KITTISemanticRGB, cfg.KITTISemanticLabel, pre)
	if err != nil {
		return err
	}

	trainOpts := dataset.LoaderOptions{BatchSize: cfg.BatchSize, Shuffle: true, DropLast: true, Workers: cfg.Workers, Seed: cfg.Seed}
	testOpts := dataset.LoaderOptions{BatchSize: cfg.BatchSize, DropLast: true, Workers: cfg.Workers}
	depthTrain, depthTest := dataset.Split(depthSet, testDiv)
	segTrain, segTest := dataset.Split(segSet, testDiv)
	data := app.TrainData{
		DepthTrain: dataset.NewLoader(depthTrain, trainOpts),
		DepthTest:  dataset.NewLoader(depthTest, testOpts),
		SegTrain:   dataset.NewLoader(segTrain, trainOpts),
		SegTest:    dataset.NewLoader(segTest, testOpts),
	}
	log.Printf("Depth samples: train=%d test=%d, segmentation samples: train=%d test=%d",
		depthTrain.Len(), depthTest.Len(), segTrain.Len(), segTest.Len())

	m, bb, err := newModel(cfg)
	if err != nil {
		return err
	}
	defer bb.Close()

	c := container.New(storage.NewMemoryUserRepository(), m, pre, render.NewHeatmap())
	trainer, err := c.Trainer(data, app.TrainOptions{
		Epochs:       cfg.Epochs,
		LearningRate: cfg.LearningRate,
		SaveDir:      saveDir,
		ExampleImage: exampleImage,
		InputH:       cfg.InputHeight,
		InputW:       cfg.InputWidth,
	}, storage.NewFileCheckpointStore(saveDir, cfg.CheckpointHalf))
	if err != nil {
		return err
	}

	_, err = trainer.Run(ctx)
	return err
}

func runInfer(ctx context.Context, cfg *config.Config, modelPath, imagePath, outputPath string) error {
	if modelPath == "" || imagePath == "" {
		return errors.New("--infer_model_path and --infer_image_path are required")
	}
	m, bb, pre, err := loadModel(ctx, cfg, modelPath)
	if err != nil {
		return err
	}
	defer bb.Close()

	c := container.New(storage.NewMemoryUserRepository(), m, pre, render.NewHeatmap())
	res, err := c.InferenceService.VisualizeFile(ctx, imagePath, outputPath)
	if err != nil {
		return err
	}

	// рядом с наложением сохраняем отдельные карты глубины и классов
	base := strings.TrimSuffix(outputPath, filepath.Ext(outputPath))
	if err := imageio.Save(base+"_depth.png", render.DepthImage(res.Prediction.Depth)); err != nil {
		return err
	}
	if err := imageio.Save(base+"_seg.png", render.SegmentationImage(res.Prediction.Segmentation)); err != nil {
		return err
	}

	seg := res.Prediction.Segmentation
	log.Printf("Saved %s: road %.1f%%, car %.1f%%", outputPath,
		seg.Fraction(entity.ClassRoad)*100, seg.Fraction(entity.ClassCar)*100)
	return nil
}

func runSummary(cfg *config.Config) error {
	kind := cfg.Backbone
	if kind != backbone.ProjectionName && cfg.BackboneModel == "" {
		log.Printf("DEPSEG_BACKBONE_MODEL is not set, summarising with the %s backbone", backbone.ProjectionName)
		kind = backbone.ProjectionName
	}
	bb, err := openBackbone(cfg, kind)
	if err != nil {
		return err
	}
	defer bb.Close()

	in := tensor.Shape{N: 8, C: 3, H: 320, W: 320}
	for _, probe := range []model.ProbeKind{model.ProbeConv, model.ProbeDepthwise} {
		m, err := model.New(bb, model.Options{Probe: probe, ClassCount: cfg.Classes, Seed: cfg.Seed})
		if err != nil {
			return err
		}
		fmt.Printf("== %s probe ==\n", probe)
		if err := model.Summarize(os.Stdout, m, in); err != nil {
			return err
		}
		fmt.Println()
	}
	return nil
}

func runBot(ctx context.Context, cfg *config.Config, modelPath string) error {
	if cfg.TelegramToken == "" {
		return errors.New("TELEGRAM_TOKEN is required")
	}

	var (
		m   *model.DualTask
		bb  port.Backbone
		pre imageio.Preprocess
		err error
	)
	if modelPath != "" {
		m, bb, pre, err = loadModel(ctx, cfg, modelPath)
	} else {
		log.Println("No --infer_model_path given, heads are untrained")
		pre = imageio.Preprocess{Width: cfg.InputWidth, Height: cfg.InputHeight}
		m, bb, err = newModel(cfg)
	}
	if err != nil {
		return err
	}
	defer bb.Close()

	// Создаём хранилище пользователей
	userRepo := storage.NewMemoryUserRepository()

	// Собираем сервисы приложения
	appContainer := container.New(userRepo, m, pre, render.NewHeatmap())

	bot, err := telegram.NewBot(cfg.TelegramToken, appContainer)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	log.Println("Bot is running...")
	return bot.Run(ctx)
}
