package model

import (
	"fmt"
	"math/rand"

	"depseg/internal/nn"
)

// ProbeKind архитектура проб-головы.
type ProbeKind string

const (
	// ProbeConv свёртки 3×3 с шагом 3 вниз и транспонированные вверх.
	ProbeConv ProbeKind = "conv"
	// ProbeDepthwise четыре depthwise-separable свёртки с шагом 1.
	ProbeDepthwise ProbeKind = "depthwise"
)

// ParseProbeKind проверяет имя архитектуры.
func ParseProbeKind(s string) (ProbeKind, error) {
	switch ProbeKind(s) {
	case ProbeConv, ProbeDepthwise:
		return ProbeKind(s), nil
	}
	return "", fmt.Errorf("unknown probe kind %q", s)
}

// NewProbe собирает голову, отображающую in каналов признаков в out каналов.
func NewProbe(name string, kind ProbeKind, in, out int, rng *rand.Rand) (*nn.Sequential, error) {
	mid := in * 3
	switch kind {
	case ProbeConv:
		return nn.NewSequential(name,
			nn.NewConv2d(in, mid, 3, 3, rng),
			nn.NewBatchNorm2d(mid),
			nn.NewLeakyReLU(),
			nn.NewConv2d(mid, mid, 3, 3, rng),
			nn.NewBatchNorm2d(mid),
			nn.NewLeakyReLU(),
			nn.NewConvTranspose2d(mid, in, 3, 3, rng),
			nn.NewBatchNorm2d(in),
			nn.NewLeakyReLU(),
			nn.NewConvTranspose2d(in, out, 3, 3, rng),
		), nil
	case ProbeDepthwise:
		return nn.NewSequential(name,
			nn.NewSeparableConv2d(in, 1, mid, rng),
			nn.NewBatchNorm2d(mid),
			nn.NewLeakyReLU(),
			nn.NewSeparableConv2d(mid, 1, mid, rng),
			nn.NewBatchNorm2d(mid),
			nn.NewLeakyReLU(),
			nn.NewSeparableConv2d(mid, 1, mid, rng),
			nn.NewBatchNorm2d(mid),
			nn.NewLeakyReLU(),
			nn.NewSeparableConv2d(mid, 1, out, rng),
		), nil
	}
	return nil, fmt.Errorf("unknown probe kind %q", kind)
}
