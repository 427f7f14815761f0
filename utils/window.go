package utils

// RollingWindow keeps the most recent values added to it, up to a fixed size.
type RollingWindow struct {
	data []float64
	pos  int
	full bool
}

// NewRollingWindow returns an empty window holding at most size values.
func NewRollingWindow(size int) *RollingWindow {
	if size < 1 {
		size = 1
	}
	return &RollingWindow{data: make([]float64, size)}
}

// Size is the most values the window holds.
func (w *RollingWindow) Size() int {
	return len(w.data)
}

// Len is how many values the window currently holds.
func (w *RollingWindow) Len() int {
	if w.full {
		return len(w.data)
	}
	return w.pos
}

// Add appends x, dropping the oldest value once the window is full.
func (w *RollingWindow) Add(x float64) {
	w.data[w.pos] = x
	w.pos++
	if w.pos >= len(w.data) {
		w.pos = 0
		w.full = true
	}
}

// Values returns a copy of the held values, oldest first.
func (w *RollingWindow) Values() []float64 {
	if !w.full {
		return append([]float64(nil), w.data[:w.pos]...)
	}
	out := make([]float64, 0, len(w.data))
	out = append(out, w.data[w.pos:]...)
	return append(out, w.data[:w.pos]...)
}

// Reset empties the window.
func (w *RollingWindow) Reset() {
	w.pos = 0
	w.full = false
}
