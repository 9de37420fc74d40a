package metrics

// Positive is the label of the positive class; every other label is negative.
const Positive = 1

// BatchAccuracy is the accuracy split of one batch, in percent.
type BatchAccuracy struct {
	Positive      float64 // correct positives / positives; 0 when the batch has none
	Negative      float64 // correct negatives / negatives; 0 when the batch has none
	Overall       float64 // correct / batch size
	PositiveCount int
}

// Accuracy splits prediction accuracy by the sign of the true label.
//
// A class with no members in the batch reports 0 rather than dividing by zero.
// pred and target must have equal length; an empty batch yields the zero value.
func Accuracy(pred, target []int) BatchAccuracy {
	if len(pred) != len(target) {
		panic("metrics: prediction and target lengths differ")
	}
	n := len(target)
	if n == 0 {
		return BatchAccuracy{}
	}

	var correct, pcorrect, ptotal int
	for i, t := range target {
		hit := pred[i] == t
		if hit {
			correct++
		}
		if t == Positive {
			ptotal++
			if hit {
				pcorrect++
			}
		}
	}
	ncorrect := correct - pcorrect

	acc := BatchAccuracy{
		Overall:       percent(correct, n),
		PositiveCount: ptotal,
	}
	if ptotal > 0 {
		acc.Positive = percent(pcorrect, ptotal)
	}
	if ptotal < n {
		acc.Negative = percent(ncorrect, n-ptotal)
	}
	return acc
}

func percent(num, den int) float64 {
	return float64(num) / float64(den) * 100
}
