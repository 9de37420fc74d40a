package metrics

import "fmt"

// Confusion counts binary outcomes over a whole split. Unlike the per-batch
// meters it yields exact per-class accuracy regardless of batch composition.
type Confusion struct {
	TruePositive  int
	FalseNegative int // positive sample not predicted +1
	TrueNegative  int
	FalsePositive int // negative sample not predicted as its label
}

// Add records one batch.
func (c *Confusion) Add(pred, target []int) {
	for i, t := range target {
		hit := pred[i] == t
		switch {
		case t == Positive && hit:
			c.TruePositive++
		case t == Positive:
			c.FalseNegative++
		case hit:
			c.TrueNegative++
		default:
			c.FalsePositive++
		}
	}
}

// Positives returns the number of positive samples seen.
func (c Confusion) Positives() int { return c.TruePositive + c.FalseNegative }

// Negatives returns the number of negative samples seen.
func (c Confusion) Negatives() int { return c.TrueNegative + c.FalsePositive }

// Total returns the number of samples seen.
func (c Confusion) Total() int { return c.Positives() + c.Negatives() }

// PositiveAccuracy is the percentage of positives classified correctly (recall).
func (c Confusion) PositiveAccuracy() float64 { return ratio(c.TruePositive, c.Positives()) }

// NegativeAccuracy is the percentage of negatives classified correctly.
func (c Confusion) NegativeAccuracy() float64 { return ratio(c.TrueNegative, c.Negatives()) }

// Accuracy is the overall percentage classified correctly.
func (c Confusion) Accuracy() float64 { return ratio(c.TruePositive+c.TrueNegative, c.Total()) }

func (c Confusion) String() string {
	return fmt.Sprintf("TP=%d FN=%d TN=%d FP=%d", c.TruePositive, c.FalseNegative, c.TrueNegative, c.FalsePositive)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return percent(num, den)
}
