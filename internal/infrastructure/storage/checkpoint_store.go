package storage

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/x448/float16"

	"depseg/internal/domain/entity"
	"depseg/internal/domain/port"
)

const (
	checkpointMagic   = "depseg-ckpt"
	checkpointVersion = 1
)

// ErrBadCheckpoint файл не является чекпоинтом или повреждён.
var ErrBadCheckpoint = errors.New("bad checkpoint file")

// CheckpointFileName имя файла чекпоинта эпохи.
func CheckpointFileName(epoch int) string {
	return fmt.Sprintf("trained_model%d.ckpt", epoch)
}

type checkpointFile struct {
	Magic      string
	Version    int
	Half       bool
	Backbone   string
	Probe      string
	ClassCount int
	InputH     int
	InputW     int
	Epoch      int
	Tensors    []tensorRecord
}

type tensorRecord struct {
	Name  string
	Shape []int
	Full  []float64
	Half  []uint16
}

// FileCheckpointStore хранит чекпоинты в каталоге в формате gob.
// При Half веса пишутся в float16.
type FileCheckpointStore struct {
	Dir  string
	Half bool
}

// NewFileCheckpointStore создаёт хранилище в каталоге dir.
func NewFileCheckpointStore(dir string, half bool) *FileCheckpointStore {
	return &FileCheckpointStore{Dir: dir, Half: half}
}

// Save пишет чекпоинт в Dir/trained_model<epoch>.ckpt.
func (s *FileCheckpointStore) Save(ctx context.Context, ckpt *entity.Checkpoint) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create checkpoint dir: %w", err)
	}

	rec := checkpointFile{
		Magic:      checkpointMagic,
		Version:    checkpointVersion,
		Half:       s.Half,
		Backbone:   ckpt.Backbone,
		Probe:      ckpt.Probe,
		ClassCount: ckpt.ClassCount,
		InputH:     ckpt.InputH,
		InputW:     ckpt.InputW,
		Epoch:      ckpt.Epoch,
		Tensors:    make([]tensorRecord, 0, len(ckpt.Tensors)),
	}
	for _, t := range ckpt.Tensors {
		tr := tensorRecord{Name: t.Name, Shape: t.Shape}
		if s.Half {
			tr.Half = make([]uint16, len(t.Values))
			for i, v := range t.Values {
				tr.Half[i] = float16.Fromfloat32(float32(v)).Bits()
			}
		} else {
			tr.Full = t.Values
		}
		rec.Tensors = append(rec.Tensors, tr)
	}

	path := filepath.Join(s.Dir, CheckpointFileName(ckpt.Epoch))
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create checkpoint: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(&rec); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("write checkpoint: %w", err)
	}
	return path, nil
}

// Load читает чекпоинт, записанный Save.
func (s *FileCheckpointStore) Load(ctx context.Context, path string) (*entity.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	var rec checkpointFile
	if err := gob.NewDecoder(f).Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadCheckpoint, path, err)
	}
	if rec.Magic != checkpointMagic {
		return nil, fmt.Errorf("%w: %s: unknown format", ErrBadCheckpoint, path)
	}
	if rec.Version != checkpointVersion {
		return nil, fmt.Errorf("%w: %s: version %d", ErrBadCheckpoint, path, rec.Version)
	}

	ckpt := &entity.Checkpoint{
		Backbone:   rec.Backbone,
		Probe:      rec.Probe,
		ClassCount: rec.ClassCount,
		InputH:     rec.InputH,
		InputW:     rec.InputW,
		Epoch:      rec.Epoch,
		Tensors:    make([]entity.NamedTensor, 0, len(rec.Tensors)),
	}
	for _, tr := range rec.Tensors {
		values := tr.Full
		if rec.Half {
			values = make([]float64, len(tr.Half))
			for i, b := range tr.Half {
				values[i] = float64(float16.Frombits(b).Float32())
			}
		}
		if values == nil {
			values = []float64{}
		}
		ckpt.Tensors = append(ckpt.Tensors, entity.NamedTensor{Name: tr.Name, Shape: tr.Shape, Values: values})
	}
	return ckpt, nil
}

var _ port.CheckpointStore = (*FileCheckpointStore)(nil)
