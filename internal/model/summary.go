package model

import (
	"fmt"
	"io"
	"text/tabwriter"

	"depseg/internal/nn"
	"depseg/internal/tensor"
)

// ParamCounter реализуют бэкбоны, знающие число своих весов.
type ParamCounter interface {
	ParamCount() int
}

// Summarize печатает таблицу слоёв, форм выходов и числа параметров для входа in.
func Summarize(w io.Writer, m *DualTask, in tensor.Shape) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Layer\tType\tOutput Shape\tParam #\tTrainable\n")

	feat := tensor.Shape{N: in.N, C: m.Backbone.FeatureChannels(), H: in.H, W: in.W}
	frozen := "external"
	frozenCount := 0
	if pc, ok := m.Backbone.(ParamCounter); ok {
		frozenCount = pc.ParamCount()
		frozen = fmt.Sprint(frozenCount)
	}
	fmt.Fprintf(tw, "base\t%s\t%s\t%s\tfalse\n", m.Backbone.Name(), feat, frozen)

	trainable := 0
	for _, head := range []*nn.Sequential{m.RegHead, m.SegHead} {
		cur := feat
		for i, l := range head.Layers {
			next, err := l.OutShape(cur)
			if err != nil {
				return fmt.Errorf("%s.%d: %w", head.Name, i, err)
			}
			count := 0
			for _, p := range l.Params() {
				count += p.Size()
			}
			trainable += count
			fmt.Fprintf(tw, "%s.%d\t%s\t%s\t%d\ttrue\n", head.Name, i, l.Kind(), next, count)
			cur = next
		}
	}

	fmt.Fprintf(tw, "depth\tpad/crop\t%s\t0\t-\n", tensor.Shape{N: in.N, C: 1, H: in.H, W: in.W})
	fmt.Fprintf(tw, "segmentation\tpad/crop\t%s\t0\t-\n", tensor.Shape{N: in.N, C: m.ClassCount, H: in.H, W: in.W})
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "Trainable params: %d\n", trainable)
	if frozenCount > 0 {
		fmt.Fprintf(w, "Frozen params: %d\n", frozenCount)
	} else {
		fmt.Fprintf(w, "Frozen params: %s (%s)\n", frozen, m.Backbone.Name())
	}
	return nil
}
