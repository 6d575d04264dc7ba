package utils

import (
	"math"
	"testing"
)

func TestNormalizeL2(t *testing.T) {
	v := []float32{3, 4}
	NormalizeL2(v)
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("got %v, want [0.6 0.8]", v)
	}

	zero := []float32{0, 0, 0}
	NormalizeL2(zero)
	for _, x := range zero {
		if x != 0 {
			t.Fatalf("zero vector changed: %v", zero)
		}
	}
}

func TestToFloat32(t *testing.T) {
	got := ToFloat32([]float64{0.5, -1.25})
	if len(got) != 2 || got[0] != 0.5 || got[1] != -1.25 {
		t.Errorf("got %v", got)
	}
	if len(ToFloat32(nil)) != 0 {
		t.Error("nil input should give empty slice")
	}
}
