package tokens

import "testing"

func TestTiktokenCounter_Count(t *testing.T) {
	c := NewTiktokenCounter()

	n, err := c.Count("gpt-4o-mini", "the quick brown fox jumps over the lazy dog")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n <= 0 {
		t.Errorf("Count() = %d, want > 0", n)
	}

	empty, err := c.Count("gpt-4o-mini", "")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if empty != 0 {
		t.Errorf("Count(empty) = %d, want 0", empty)
	}
}

func TestTiktokenCounter_UnknownModelFallsBack(t *testing.T) {
	c := NewTiktokenCounter()
	n, err := c.Count("some-future-model", "hello world")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n <= 0 {
		t.Errorf("Count() = %d, want > 0", n)
	}
}

func TestEstimator_Count(t *testing.T) {
	e := Estimator{}
	n, err := e.Count("whatever", "12345678")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Count() = %d, want 2 (8 chars / 4)", n)
	}
}
