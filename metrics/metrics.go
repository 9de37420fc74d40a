// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package metrics

import "github.com/born-ml/selfpu/internal/metrics"

// Positive is the label of the positive class.
const Positive = metrics.Positive

// Meter computes and stores the average and current value.
type Meter = metrics.Meter

// BatchAccuracy is the accuracy split of one batch, in percent.
type BatchAccuracy = metrics.BatchAccuracy

// Confusion counts binary outcomes over a whole split.
type Confusion = metrics.Confusion

// Accuracy splits prediction accuracy by the sign of the true label.
//
// Example:
//
//	acc := metrics.Accuracy([]int{1, -1, 1}, []int{1, 1, 1})
//	// acc.Positive == 66.67, acc.Negative == 0 (no negatives), acc.Overall == 66.67
func Accuracy(pred, target []int) BatchAccuracy {
	return metrics.Accuracy(pred, target)
}
