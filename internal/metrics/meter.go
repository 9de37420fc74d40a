// Package metrics aggregates evaluation statistics: running averages and the
// positive/negative accuracy split of a binary classifier.
package metrics

import "fmt"

// Meter computes and stores the average and current value.
//
// Avg is Sum/Count whenever Count > 0 and 0 otherwise.
type Meter struct {
	Val   float64
	Sum   float64
	Count int
	Avg   float64
}

// Reset zeroes every field.
func (m *Meter) Reset() {
	*m = Meter{}
}

// Update records val observed over n samples.
func (m *Meter) Update(val float64, n int) {
	m.Val = val
	m.Sum += val * float64(n)
	m.Count += n
	if m.Count == 0 {
		m.Avg = 0
	} else {
		m.Avg = m.Sum / float64(m.Count)
	}
}

// String formats the meter as "val (avg)" with three decimals.
func (m Meter) String() string {
	return fmt.Sprintf("%.3f (%.3f)", m.Val, m.Avg)
}
