package detect

import (
	"strings"
	"testing"
)

func TestCoverageBoundaryInclusive(t *testing.T) {
	t.Parallel()

	monitor := Monitor{Floor: 0.70}

	coverage, warn := monitor.Evaluate(7, 10)
	if coverage != 0.70 {
		t.Fatalf("unexpected coverage: %v", coverage)
	}
	if warn {
		t.Fatal("coverage at the floor must not warn")
	}

	coverage, warn = monitor.Evaluate(6, 10)
	if coverage != 0.60 {
		t.Fatalf("unexpected coverage: %v", coverage)
	}
	if !warn {
		t.Fatal("coverage below the floor must warn")
	}
}

func TestCoverageEmptyTargetSet(t *testing.T) {
	t.Parallel()

	coverage, warn := Monitor{Floor: 0.70}.Evaluate(0, 0)
	if coverage != 0 || warn {
		t.Fatalf("empty target set: coverage=%v warn=%v", coverage, warn)
	}
}

func TestWarningMessage(t *testing.T) {
	t.Parallel()

	msg := WarningMessage(6, 10, 0.60)
	if !strings.Contains(msg, "6 of 10") || !strings.Contains(msg, "60%") {
		t.Fatalf("unexpected message: %s", msg)
	}
}
