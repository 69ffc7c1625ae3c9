package entity

// NamedTensor именованный тензор параметров головы.
type NamedTensor struct {
	Name   string
	Shape  []int
	Values []float64
}

// Checkpoint сохранённое состояние проб-голов и метаданные модели.
type Checkpoint struct {
	Backbone   string
	Probe      string
	ClassCount int
	InputH     int
	InputW     int
	Epoch      int
	Tensors    []NamedTensor
}

// Lookup возвращает тензор по имени.
func (c *Checkpoint) Lookup(name string) (NamedTensor, bool) {
	for _, t := range c.Tensors {
		if t.Name == name {
			return t, true
		}
	}
	return NamedTensor{}, false
}
