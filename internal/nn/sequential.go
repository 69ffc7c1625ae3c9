package nn

import (
	"fmt"

	"depseg/internal/tensor"
)

// Sequential цепочка слоёв. Имена параметров получают префикс
// "<name>.<index>.", например "reg_head.0.weight".
type Sequential struct {
	Name   string
	Layers []Layer
}

func NewSequential(name string, layers ...Layer) *Sequential {
	for i, l := range layers {
		for _, p := range l.Params() {
			p.Name = fmt.Sprintf("%s.%d.%s", name, i, p.Name)
		}
		for _, p := range l.Buffers() {
			p.Name = fmt.Sprintf("%s.%d.%s", name, i, p.Name)
		}
	}
	return &Sequential{Name: name, Layers: layers}
}

func (s *Sequential) Kind() string { return "Sequential" }

func (s *Sequential) OutShape(in tensor.Shape) (tensor.Shape, error) {
	cur := in
	for i, l := range s.Layers {
		next, err := l.OutShape(cur)
		if err != nil {
			return tensor.Shape{}, fmt.Errorf("%s.%d: %w", s.Name, i, err)
		}
		cur = next
	}
	return cur, nil
}

func (s *Sequential) Forward(x *tensor.Tensor, train bool) (*tensor.Tensor, error) {
	cur := x
	for i, l := range s.Layers {
		next, err := l.Forward(cur, train)
		if err != nil {
			return nil, fmt.Errorf("%s.%d: %w", s.Name, i, err)
		}
		cur = next
	}
	return cur, nil
}

func (s *Sequential) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	cur := grad
	for i := len(s.Layers) - 1; i >= 0; i-- {
		next, err := s.Layers[i].Backward(cur)
		if err != nil {
			return nil, fmt.Errorf("%s.%d: %w", s.Name, i, err)
		}
		cur = next
	}
	return cur, nil
}

func (s *Sequential) Params() []*Param {
	var ps []*Param
	for _, l := range s.Layers {
		ps = append(ps, l.Params()...)
	}
	return ps
}

func (s *Sequential) Buffers() []*Param {
	var ps []*Param
	for _, l := range s.Layers {
		ps = append(ps, l.Buffers()...)
	}
	return ps
}
