// Package dataset загружает KITTI depth и KITTI semantic и собирает батчи.
package dataset

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"depseg/internal/domain/entity"
	"depseg/internal/domain/port"
	"depseg/internal/infrastructure/imageio"
)

// Pair путь к RGB и путь к метке одного примера.
type Pair struct {
	RGB   string
	Label string
}

// KITTI датасет пар RGB/метка. Метка глубины 16-битная PNG (значение/256 = м),
// метка сегментации 8-битная PNG с id классов.
type KITTI struct {
	task  entity.Task
	pairs []Pair
	pre   imageio.Preprocess
}

// NewKITTIDepth собирает датасет глубины из двух каталогов.
func NewKITTIDepth(rgbDir, labelDir string, pre imageio.Preprocess) (*KITTI, error) {
	return newKITTI(entity.TaskDepth, rgbDir, labelDir, pre)
}

// NewKITTISemantic собирает датасет сегментации из двух каталогов.
func NewKITTISemantic(rgbDir, labelDir string, pre imageio.Preprocess) (*KITTI, error) {
	return newKITTI(entity.TaskSegmentation, rgbDir, labelDir, pre)
}

// NewKITTIFromPairs создаёт датасет из готового списка пар.
func NewKITTIFromPairs(task entity.Task, pairs []Pair, pre imageio.Preprocess) *KITTI {
	return &KITTI{task: task, pairs: pairs, pre: pre}
}

func newKITTI(task entity.Task, rgbDir, labelDir string, pre imageio.Preprocess) (*KITTI, error) {
	pairs, err := MatchPairs(rgbDir, labelDir)
	if err != nil {
		return nil, fmt.Errorf("kitti %s: %w", task, err)
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("kitti %s: no label files found in %s", task, labelDir)
	}
	return NewKITTIFromPairs(task, pairs, pre), nil
}

// MatchPairs сопоставляет каждую PNG метку из labelDir с RGB изображением
// из rgbDir: сначала по относительному пути, затем по уникальному имени файла.
// Метки без пары пропускаются.
func MatchPairs(rgbDir, labelDir string) ([]Pair, error) {
	byName := make(map[string][]string)
	err := filepath.WalkDir(rgbDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isImage(path) {
			return nil
		}
		byName[d.Name()] = append(byName[d.Name()], path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var pairs []Pair
	err = filepath.WalkDir(labelDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".png") {
			return nil
		}
		rel, err := filepath.Rel(labelDir, path)
		if err != nil {
			return err
		}
		candidate := filepath.Join(rgbDir, rel)
		if _, err := os.Stat(candidate); err == nil {
			pairs = append(pairs, Pair{RGB: candidate, Label: path})
			return nil
		}
		if found := byName[d.Name()]; len(found) == 1 {
			pairs = append(pairs, Pair{RGB: found[0], Label: path})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Label < pairs[j].Label })
	return pairs, nil
}

func isImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

func (k *KITTI) Task() entity.Task { return k.task }

func (k *KITTI) Len() int { return len(k.pairs) }

// Pairs возвращает пары в порядке индексов.
func (k *KITTI) Pairs() []Pair { return k.pairs }

func (k *KITTI) Get(ctx context.Context, i int) (*entity.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(k.pairs) {
		return nil, fmt.Errorf("kitti %s: index %d out of range [0, %d)", k.task, i, len(k.pairs))
	}
	p := k.pairs[i]

	img, err := imageio.Load(p.RGB)
	if err != nil {
		return nil, err
	}
	sample := &entity.Sample{Path: p.RGB, Image: k.pre.Apply(img)}

	switch k.task {
	case entity.TaskDepth:
		sample.Label, err = imageio.LoadDepth(p.Label, k.pre.Width, k.pre.Height)
	default:
		sample.Label, err = imageio.LoadLabels(p.Label, k.pre.Width, k.pre.Height)
	}
	if err != nil {
		return nil, err
	}
	return sample, nil
}

var _ port.Dataset = (*KITTI)(nil)
