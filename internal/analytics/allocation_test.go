package analytics

import "testing"

func TestAllocationDeviation(t *testing.T) {
	// 40% target of 10,000 with 3,000 held: 1,000 under.
	dev := AllocationDeviation(dec("3000"), dec("0.40"), dec("10000"))
	if !dev.Equal(dec("-1000")) {
		t.Fatalf("deviation: got=%s want=-1000", dev)
	}
	ratio, ok := DeviationRatio(dev, TargetValue(dec("0.40"), dec("10000")))
	if !ok || !ratio.Equal(dec("0.25")) {
		t.Fatalf("ratio: got=%s ok=%v want=0.25", ratio, ok)
	}

	over := AllocationDeviation(dec("5000"), dec("0.40"), dec("10000"))
	if !over.Equal(dec("1000")) {
		t.Fatalf("over-allocation: got=%s want=1000", over)
	}
}

func TestDeviationRatioZeroTarget(t *testing.T) {
	if _, ok := DeviationRatio(dec("50"), dec("0")); ok {
		t.Fatal("holding with zero target should be unbounded")
	}
	if ratio, ok := DeviationRatio(dec("0"), dec("0")); !ok || !ratio.IsZero() {
		t.Fatalf("empty bucket with zero target: got=%s ok=%v", ratio, ok)
	}
}
