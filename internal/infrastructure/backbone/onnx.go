package backbone

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"depseg/internal/domain/port"
	"depseg/internal/tensor"
)

// ONNXOptions параметры экспортированного бэкбона.
type ONNXOptions struct {
	Name        string // deeplab или fcn, попадает в чекпоинт
	ModelPath   string // путь к .onnx
	LibraryPath string // путь к libonnxruntime, пусто = системный
	InputName   string
	OutputName  string
	Channels    int // каналы выхода "out", 21 для VOC-голов torchvision
}

// DefaultONNXOptions имена входа и выхода при экспорте сегментационных
// моделей torchvision.
func DefaultONNXOptions(name, modelPath string) ONNXOptions {
	return ONNXOptions{
		Name:       name,
		ModelPath:  modelPath,
		InputName:  "input",
		OutputName: "out",
		Channels:   21,
	}
}

// onnxSession сессия под одну форму входа вместе с её тензорами.
type onnxSession struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func (s *onnxSession) destroy() {
	if s.input != nil {
		s.input.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
	if s.session != nil {
		s.session.Destroy()
	}
}

// ONNX замороженный бэкбон, исполняемый ONNX Runtime. Сессии создаются
// лениво под каждую форму батча и переиспользуются.
type ONNX struct {
	opts ONNXOptions

	mu       sync.Mutex
	sessions map[tensor.Shape]*onnxSession
}

// NewONNX инициализирует окружение ONNX Runtime.
func NewONNX(opts ONNXOptions) (*ONNX, error) {
	if opts.ModelPath == "" {
		return nil, errors.New("onnx backbone: model path is required")
	}
	if opts.Channels < 1 {
		return nil, fmt.Errorf("onnx backbone: invalid channel count %d", opts.Channels)
	}
	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	return &ONNX{
		opts:     opts,
		sessions: make(map[tensor.Shape]*onnxSession),
	}, nil
}

func (b *ONNX) Name() string { return b.opts.Name }

func (b *ONNX) FeatureChannels() int { return b.opts.Channels }

func (b *ONNX) session(s tensor.Shape) (*onnxSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sess, ok := b.sessions[s]; ok {
		return sess, nil
	}

	inputShape := ort.NewShape(int64(s.N), int64(s.C), int64(s.H), int64(s.W))
	outputShape := ort.NewShape(int64(s.N), int64(b.opts.Channels), int64(s.H), int64(s.W))

	sess := &onnxSession{}
	var err error
	sess.input, err = ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	sess.output, err = ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		sess.destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	sess.session, err = ort.NewAdvancedSession(b.opts.ModelPath,
		[]string{b.opts.InputName}, []string{b.opts.OutputName},
		[]ort.ArbitraryTensor{sess.input}, []ort.ArbitraryTensor{sess.output},
		nil)
	if err != nil {
		sess.destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	log.Printf("Backbone %s: new session for input %s", b.opts.Name, s)
	b.sessions[s] = sess
	return sess, nil
}

func (b *ONNX) Extract(ctx context.Context, images *tensor.Tensor) (*tensor.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if images.Shape.C != 3 {
		return nil, fmt.Errorf("%w: backbone expects 3 channels, got %s", tensor.ErrShape, images.Shape)
	}

	sess, err := b.session(images.Shape)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	in := sess.input.GetData()
	for i, v := range images.Data {
		in[i] = float32(v)
	}
	if err := sess.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	s := images.Shape
	out := tensor.New(s.N, b.opts.Channels, s.H, s.W)
	for i, v := range sess.output.GetData() {
		out.Data[i] = float64(v)
	}
	return out, nil
}

// Close уничтожает сессии и окружение ONNX Runtime.
func (b *ONNX) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for s, sess := range b.sessions {
		sess.destroy()
		delete(b.sessions, s)
	}
	return ort.DestroyEnvironment()
}

var _ port.Backbone = (*ONNX)(nil)
