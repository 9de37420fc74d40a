// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package metrics exposes the accuracy statistics used to score binary
// classifiers trained on positive-unlabeled data.
//
// # Overview
//
// A classifier outputs one logit per sample and predicts its sign. Targets
// are +1 for the positive class and anything else (-1 or 0) for the negative
// class. This package provides:
//   - Meter, a running average weighted by sample count
//   - Accuracy, the per-batch split into positive, negative and overall accuracy
//   - Confusion, exact per-class counts over a whole split
//
// # Basic Usage
//
//	var pacc, nacc, pnacc metrics.Meter
//	for _, batch := range batches {
//	    acc := metrics.Accuracy(batch.Pred, batch.Target)
//	    n := len(batch.Target)
//	    pacc.Update(acc.Positive, n)
//	    nacc.Update(acc.Negative, n)
//	    pnacc.Update(acc.Overall, n)
//	}
//	fmt.Printf("PACC %s\tNACC %s\tPNACC %s\n", pacc, nacc, pnacc)
//
// When a batch has no member of a class, that class reports 0 for the batch.
// The weighted meters therefore underestimate per-class accuracy on small
// batches; use Confusion for exact figures.
package metrics
