package fault

import "testing"

func TestCheckPassesOnTrue(t *testing.T) {
	Check(true, "should not halt")
}

func TestCheckHaltsOnFalse(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected halt")
		}
		if s, ok := r.(string); !ok || s != "fault: broken invariant" {
			t.Fatalf("halt message = %v", r)
		}
	}()
	Check(false, "broken invariant")
}
