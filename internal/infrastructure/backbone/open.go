package backbone

import (
	"fmt"

	"depseg/internal/domain/port"
)

// Имена поддерживаемых бэкбонов.
const (
	DeepLabName = "deeplab" // deeplabv3_mobilenet_v3_large
	FCNName     = "fcn"     // fcn_resnet50
)

// FeatureChannels число каналов выхода сегментационных моделей torchvision.
const FeatureChannels = 21

// Config выбор и расположение бэкбона.
type Config struct {
	Kind        string
	ModelPath   string
	LibraryPath string
	Seed        int64
}

// Open создаёт бэкбон по имени.
func Open(cfg Config) (port.Backbone, error) {
	switch cfg.Kind {
	case DeepLabName, FCNName:
		opts := DefaultONNXOptions(cfg.Kind, cfg.ModelPath)
		opts.LibraryPath = cfg.LibraryPath
		return NewONNX(opts)
	case ProjectionName:
		return NewProjection(FeatureChannels, cfg.Seed), nil
	}
	return nil, fmt.Errorf("unknown backbone %q", cfg.Kind)
}
