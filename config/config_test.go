package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DEPSEG_BACKBONE", "")
	t.Setenv("DEPSEG_CLASSES", "")
	t.Setenv("DEPSEG_LR", "")
	t.Setenv("DEPSEG_CHECKPOINT_HALF", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "deeplab", cfg.Backbone)
	require.Equal(t, 35, cfg.Classes)
	require.Equal(t, 200, cfg.InputHeight)
	require.Equal(t, 640, cfg.InputWidth)
	require.Equal(t, 1e-3, cfg.LearningRate)
	require.False(t, cfg.CheckpointHalf)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DEPSEG_BACKBONE", "projection")
	t.Setenv("DEPSEG_PROBE", "depthwise")
	t.Setenv("DEPSEG_EPOCHS", "3")
	t.Setenv("DEPSEG_LR", "0.01")
	t.Setenv("DEPSEG_CHECKPOINT_HALF", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "projection", cfg.Backbone)
	require.Equal(t, "depthwise", cfg.Probe)
	require.Equal(t, 3, cfg.Epochs)
	require.Equal(t, 0.01, cfg.LearningRate)
	require.True(t, cfg.CheckpointHalf)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("DEPSEG_BATCH", "two")
	_, err := Load()
	require.ErrorContains(t, err, "DEPSEG_BATCH")

	t.Setenv("DEPSEG_BATCH", "0")
	_, err = Load()
	require.Error(t, err)
}
