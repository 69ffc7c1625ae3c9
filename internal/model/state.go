package model

import (
	"errors"
	"fmt"

	"depseg/internal/domain/entity"
	"depseg/internal/domain/port"
	"depseg/internal/nn"
)

// ErrCheckpointMismatch чекпоинт не подходит к архитектуре модели.
var ErrCheckpointMismatch = errors.New("checkpoint does not match model")

func (m *DualTask) stateParams() []*nn.Param {
	return append(m.Trainable(), m.Buffers()...)
}

// Checkpoint снимает копию всех тензоров голов.
func (m *DualTask) Checkpoint(epoch, inputH, inputW int) *entity.Checkpoint {
	ps := m.stateParams()
	ckpt := &entity.Checkpoint{
		Backbone:   m.Backbone.Name(),
		Probe:      string(m.Probe),
		ClassCount: m.ClassCount,
		InputH:     inputH,
		InputW:     inputW,
		Epoch:      epoch,
		Tensors:    make([]entity.NamedTensor, 0, len(ps)),
	}
	for _, p := range ps {
		ckpt.Tensors = append(ckpt.Tensors, entity.NamedTensor{
			Name:   p.Name,
			Shape:  append([]int(nil), p.Shape...),
			Values: append([]float64(nil), p.Value...),
		})
	}
	return ckpt
}

// LoadCheckpoint копирует тензоры чекпоинта в головы.
func (m *DualTask) LoadCheckpoint(ckpt *entity.Checkpoint) error {
	if ckpt.Probe != string(m.Probe) || ckpt.ClassCount != m.ClassCount {
		return fmt.Errorf("%w: probe %s/%d classes, model %s/%d classes",
			ErrCheckpointMismatch, ckpt.Probe, ckpt.ClassCount, m.Probe, m.ClassCount)
	}
	for _, p := range m.stateParams() {
		t, ok := ckpt.Lookup(p.Name)
		if !ok {
			return fmt.Errorf("%w: missing tensor %s", ErrCheckpointMismatch, p.Name)
		}
		if len(t.Values) != p.Size() {
			return fmt.Errorf("%w: tensor %s has %d values, want %d", ErrCheckpointMismatch, p.Name, len(t.Values), p.Size())
		}
		copy(p.Value, t.Values)
	}
	return nil
}

// FromCheckpoint собирает модель по метаданным чекпоинта и загружает веса.
func FromCheckpoint(backbone port.Backbone, ckpt *entity.Checkpoint) (*DualTask, error) {
	probe, err := ParseProbeKind(ckpt.Probe)
	if err != nil {
		return nil, err
	}
	if backbone.Name() != ckpt.Backbone {
		return nil, fmt.Errorf("%w: trained on backbone %s, got %s", ErrCheckpointMismatch, ckpt.Backbone, backbone.Name())
	}
	m, err := New(backbone, Options{Probe: probe, ClassCount: ckpt.ClassCount})
	if err != nil {
		return nil, err
	}
	if err := m.LoadCheckpoint(ckpt); err != nil {
		return nil, err
	}
	return m, nil
}
