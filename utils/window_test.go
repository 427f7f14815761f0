package utils

import (
	"testing"

	"go.viam.com/test"
)

func TestRollingWindow(t *testing.T) {
	w := NewRollingWindow(3)
	test.That(t, w.Size(), test.ShouldEqual, 3)
	test.That(t, w.Len(), test.ShouldEqual, 0)
	test.That(t, w.Values(), test.ShouldBeEmpty)

	w.Add(1)
	w.Add(2)
	test.That(t, w.Len(), test.ShouldEqual, 2)
	test.That(t, w.Values(), test.ShouldResemble, []float64{1, 2})

	w.Add(3)
	w.Add(4)
	test.That(t, w.Len(), test.ShouldEqual, 3)
	test.That(t, w.Values(), test.ShouldResemble, []float64{2, 3, 4})

	w.Reset()
	test.That(t, w.Len(), test.ShouldEqual, 0)
	w.Add(5)
	test.That(t, w.Values(), test.ShouldResemble, []float64{5})

	test.That(t, NewRollingWindow(0).Size(), test.ShouldEqual, 1)
}
