package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken string

	// Бэкбон: deeplab, fcn или projection
	Backbone      string
	BackboneModel string
	ORTLibrary    string

	Probe        string
	Classes      int
	InputHeight  int
	InputWidth   int
	Epochs       int
	BatchSize    int
	Workers      int
	LearningRate float64
	Seed         int64
	// Хранить веса чекпоинтов в float16
	CheckpointHalf bool

	KITTIDepthRGB      string
	KITTIDepthLabels   string
	KITTISemanticRGB   string
	KITTISemanticLabel string
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		TelegramToken:      os.Getenv("TELEGRAM_TOKEN"),
		Backbone:           getEnv("DEPSEG_BACKBONE", "deeplab"),
		BackboneModel:      os.Getenv("DEPSEG_BACKBONE_MODEL"),
		ORTLibrary:         os.Getenv("ORT_LIBRARY_PATH"),
		Probe:              getEnv("DEPSEG_PROBE", "conv"),
		KITTIDepthRGB:      os.Getenv("KITTI_DEPTH_RGB_DIR"),
		KITTIDepthLabels:   os.Getenv("KITTI_DEPTH_LABEL_DIR"),
		KITTISemanticRGB:   os.Getenv("KITTI_SEMANTIC_RGB_DIR"),
		KITTISemanticLabel: os.Getenv("KITTI_SEMANTIC_LABEL_DIR"),
	}

	var err error
	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"DEPSEG_CLASSES", 35, &cfg.Classes},
		{"DEPSEG_INPUT_HEIGHT", 200, &cfg.InputHeight},
		{"DEPSEG_INPUT_WIDTH", 640, &cfg.InputWidth},
		{"DEPSEG_EPOCHS", 100, &cfg.Epochs},
		{"DEPSEG_BATCH", 2, &cfg.BatchSize},
		{"DEPSEG_WORKERS", 2, &cfg.Workers},
	}
	for _, v := range ints {
		if *v.dst, err = getInt(v.key, v.def); err != nil {
			return nil, err
		}
		if *v.dst < 1 {
			return nil, fmt.Errorf("%s must be positive, got %d", v.key, *v.dst)
		}
	}

	if cfg.LearningRate, err = getFloat("DEPSEG_LR", 1e-3); err != nil {
		return nil, err
	}
	seed, err := getInt("DEPSEG_SEED", 1)
	if err != nil {
		return nil, err
	}
	cfg.Seed = int64(seed)
	if cfg.CheckpointHalf, err = getBool("DEPSEG_CHECKPOINT_HALF", false); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
