package detect

import (
	"math"
	"sort"

	"pricewatch/internal/domain"
)

// baseline is what history establishes for one item key: the comparison
// row and the all-time minimum price.
type baseline struct {
	previous *domain.Observation
	minEver  float64
}

// Alerts compares the current run batch against the historical log and
// returns every threshold crossing. The log is expected to already
// contain the current run's rows, so "previous" is the second-most-recent
// observation per item key at comparison time; rows without a valid price
// are skipped. A key with fewer than two rows has no previous observation
// and is never an alert — a first-ever price is not a change.
func Alerts(history, batch []domain.Observation, threshold float64) []domain.AlertEvent {
	if threshold <= 0 || len(batch) == 0 {
		return nil
	}

	base := baselines(history)

	var alerts []domain.AlertEvent
	for _, obs := range batch {
		if !obs.Price.Valid {
			continue
		}
		b, ok := base[obs.Key()]
		if !ok || b.previous == nil {
			continue
		}

		previous := b.previous.Price.Value
		current := obs.Price.Value
		deltaAbs := current - previous
		deltaPct := 0.0
		if previous != 0 {
			deltaPct = current/previous - 1
		}

		if math.Abs(deltaPct) < threshold {
			continue
		}

		direction := domain.DirectionIncreased
		if deltaAbs < 0 {
			direction = domain.DirectionDecreased
		}

		alerts = append(alerts, domain.AlertEvent{
			Key:           obs.Key(),
			PreviousPrice: previous,
			CurrentPrice:  current,
			DeltaAbs:      deltaAbs,
			DeltaPct:      deltaPct,
			MinPriceEver:  b.minEver,
			Stock:         obs.Stock,
			URL:           obs.URL,
			Direction:     direction,
		})
	}

	return alerts
}

// baselines groups the log by item key, orders each group by timestamp,
// and derives the previous observation and minimum-ever price. Per-key
// chronological order is established here by sorting, not assumed from
// insertion order.
func baselines(history []domain.Observation) map[domain.ItemKey]baseline {
	groups := make(map[domain.ItemKey][]domain.Observation)
	for _, obs := range history {
		if !obs.Price.Valid {
			continue
		}
		key := obs.Key()
		groups[key] = append(groups[key], obs)
	}

	out := make(map[domain.ItemKey]baseline, len(groups))
	for key, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Timestamp.Before(group[j].Timestamp)
		})

		b := baseline{minEver: group[0].Price.Value}
		for _, obs := range group {
			if obs.Price.Value < b.minEver {
				b.minEver = obs.Price.Value
			}
		}
		if len(group) >= 2 {
			b.previous = &group[len(group)-2]
		}
		out[key] = b
	}

	return out
}
