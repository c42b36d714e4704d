package detect

import "fmt"

// Monitor computes run coverage and decides whether the low-coverage
// warning should fire. It always runs after the scrape, whether or not
// any price alerts fired.
type Monitor struct {
	// Floor is the coverage fraction at which a run is still healthy.
	// The boundary is inclusive: exactly Floor does not warn.
	Floor float64
}

// Evaluate returns the coverage fraction and whether the warning fires.
// An empty target set reports zero coverage without warning.
func (m Monitor) Evaluate(accepted, targets int) (float64, bool) {
	if targets == 0 {
		return 0, false
	}
	coverage := float64(accepted) / float64(targets)
	return coverage, coverage < m.Floor
}

// WarningMessage renders the low-coverage notification, distinct from
// price alerts.
func WarningMessage(accepted, targets int, coverage float64) string {
	return fmt.Sprintf("Low scrape coverage: %d of %d targets produced an observation (%.0f%%)",
		accepted, targets, coverage*100)
}
