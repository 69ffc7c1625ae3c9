package dataset

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"

	"depseg/internal/domain/entity"
	"depseg/internal/domain/port"
	"depseg/internal/tensor"
)

// Subset представление части датасета по списку индексов.
type Subset struct {
	ds      port.Dataset
	indices []int
}

// NewSubset создаёт подмножество [from, to).
func NewSubset(ds port.Dataset, from, to int) *Subset {
	indices := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		indices = append(indices, i)
	}
	return &Subset{ds: ds, indices: indices}
}

// Split отдаёт первую 1/testDiv часть датасета под тест, остальное под обучение.
func Split(ds port.Dataset, testDiv int) (train, test *Subset) {
	cut := ds.Len() / testDiv
	return NewSubset(ds, cut, ds.Len()), NewSubset(ds, 0, cut)
}

func (s *Subset) Task() entity.Task { return s.ds.Task() }

func (s *Subset) Len() int { return len(s.indices) }

func (s *Subset) Get(ctx context.Context, i int) (*entity.Sample, error) {
	if i < 0 || i >= len(s.indices) {
		return nil, fmt.Errorf("subset index %d out of range [0, %d)", i, len(s.indices))
	}
	return s.ds.Get(ctx, s.indices[i])
}

// LoaderOptions параметры загрузчика батчей.
type LoaderOptions struct {
	BatchSize int
	Shuffle   bool
	DropLast  bool
	Workers   int
	Seed      int64
}

// Loader выдаёт батчи датасета, загружая их в фоновых горутинах.
type Loader struct {
	ds   port.Dataset
	opts LoaderOptions
	rng  *rand.Rand
}

func NewLoader(ds port.Dataset, opts LoaderOptions) *Loader {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Loader{ds: ds, opts: opts, rng: rand.New(rand.NewSource(opts.Seed))}
}

// Len число батчей за эпоху.
func (l *Loader) Len() int {
	n := l.ds.Len() / l.opts.BatchSize
	if !l.opts.DropLast && l.ds.Len()%l.opts.BatchSize != 0 {
		n++
	}
	return n
}

// Task задача датасета.
func (l *Loader) Task() entity.Task {
	return l.ds.Task()
}

func (l *Loader) plan() [][]int {
	order := make([]int, l.ds.Len())
	for i := range order {
		order[i] = i
	}
	if l.opts.Shuffle {
		l.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	batches := make([][]int, 0, l.Len())
	for start := 0; start < len(order); start += l.opts.BatchSize {
		end := start + l.opts.BatchSize
		if end > len(order) {
			if l.opts.DropLast {
				break
			}
			end = len(order)
		}
		batches = append(batches, order[start:end])
	}
	return batches
}

type batchResult struct {
	batch *entity.Batch
	err   error
}

// Iterator последовательный доступ к батчам одной эпохи.
type Iterator struct {
	ctx     context.Context
	cancel  context.CancelFunc
	results []chan batchResult
	tokens  chan struct{}
	next    int
	wg      sync.WaitGroup
}

// Iterate запускает загрузку эпохи. Батчи отдаются в порядке плана,
// вперёд загружается не больше 2*Workers батчей. Итератор нужно закрыть.
func (l *Loader) Iterate(ctx context.Context) port.BatchIterator {
	batches := l.plan()
	ctx, cancel := context.WithCancel(ctx)
	it := &Iterator{
		ctx:     ctx,
		cancel:  cancel,
		results: make([]chan batchResult, len(batches)),
		tokens:  make(chan struct{}, 2*l.opts.Workers),
	}
	for i := range it.results {
		it.results[i] = make(chan batchResult, 1)
	}

	jobs := make(chan int)
	it.wg.Add(1)
	go func() {
		defer it.wg.Done()
		defer close(jobs)
		for i := range batches {
			select {
			case it.tokens <- struct{}{}:
			case <-ctx.Done():
				return
			}
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	for w := 0; w < l.opts.Workers; w++ {
		it.wg.Add(1)
		go func() {
			defer it.wg.Done()
			for i := range jobs {
				b, err := l.load(ctx, batches[i])
				it.results[i] <- batchResult{batch: b, err: err}
			}
		}()
	}

	return it
}

// Next возвращает следующий батч или io.EOF в конце эпохи.
func (it *Iterator) Next() (*entity.Batch, error) {
	if it.next >= len(it.results) {
		return nil, io.EOF
	}
	if err := it.ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case r := <-it.results[it.next]:
		it.next++
		<-it.tokens
		return r.batch, r.err
	case <-it.ctx.Done():
		return nil, it.ctx.Err()
	}
}

// Close останавливает фоновые горутины.
func (it *Iterator) Close() {
	it.cancel()
	it.wg.Wait()
}

func (l *Loader) load(ctx context.Context, indices []int) (*entity.Batch, error) {
	images := make([]*tensor.Tensor, 0, len(indices))
	labels := make([]*tensor.Tensor, 0, len(indices))
	paths := make([]string, 0, len(indices))
	for _, i := range indices {
		s, err := l.ds.Get(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("load sample %d: %w", i, err)
		}
		images = append(images, s.Image)
		labels = append(labels, s.Label)
		paths = append(paths, s.Path)
	}

	imgs, err := tensor.Stack(images)
	if err != nil {
		return nil, err
	}
	labs, err := tensor.Stack(labels)
	if err != nil {
		return nil, err
	}
	return &entity.Batch{Task: l.ds.Task(), Paths: paths, Images: imgs, Labels: labs}, nil
}

var _ port.BatchLoader = (*Loader)(nil)
