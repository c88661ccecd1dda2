package fdr

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Classifier is the PEP classifier collaborator (spec §8.3's open
// collaborator: "train(features, labels) -> model; predict(features) ->
// posterior_error_prob"). Any gradient-boosted or logistic implementation
// suffices; the engine only consumes probability output.
type Classifier interface {
	Train(features [][]float64, labels []float64) error
	Predict(features []float64) float64
}

// LogisticClassifier is a standardized-feature logistic regression trained
// by batch gradient descent, used as the default PEP classifier.
type LogisticClassifier struct {
	mean, std []float64
	weights   []float64 // weights[0] is the bias term
	rate      float64
	iters     int
}

// NewLogisticClassifier returns an untrained classifier with reasonable
// defaults for the small, low-dimensional feature vectors this package
// trains on (spec §4.10: MBR score, ppm error, RT error, intensity,
// envelope correlation, charge, donor condition delta).
func NewLogisticClassifier() *LogisticClassifier {
	return &LogisticClassifier{rate: 0.1, iters: 500}
}

// Train fits weights via batch gradient descent on standardized features.
func (c *LogisticClassifier) Train(features [][]float64, labels []float64) error {
	n := len(features)
	if n == 0 {
		return nil
	}
	dims := len(features[0])

	c.mean = make([]float64, dims)
	c.std = make([]float64, dims)
	for d := 0; d < dims; d++ {
		col := make([]float64, n)
		for i := range features {
			col[i] = features[i][d]
		}
		c.mean[d], c.std[d] = stat.MeanStdDev(col, nil)
		if c.std[d] == 0 {
			c.std[d] = 1
		}
	}

	x := mat.NewDense(n, dims+1, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
		for d := 0; d < dims; d++ {
			x.Set(i, d+1, (features[i][d]-c.mean[d])/c.std[d])
		}
	}
	y := mat.NewVecDense(n, labels)

	weights := mat.NewVecDense(dims+1, nil)
	var gradient mat.VecDense
	var pred mat.VecDense
	for iter := 0; iter < c.iters; iter++ {
		pred.MulVec(x, weights)
		for i := 0; i < n; i++ {
			pred.SetVec(i, sigmoid(pred.AtVec(i)))
		}
		pred.SubVec(&pred, y)
		gradient.MulVec(x.T(), &pred)
		gradient.ScaleVec(c.rate/float64(n), &gradient)
		weights.SubVec(weights, &gradient)
	}

	c.weights = make([]float64, dims+1)
	for i := range c.weights {
		c.weights[i] = weights.AtVec(i)
	}
	return nil
}

// Predict returns the posterior probability of the positive (true-match)
// class; callers invert it (1 - p) to get a posterior error probability.
func (c *LogisticClassifier) Predict(features []float64) float64 {
	if c.weights == nil {
		return 0.5
	}
	z := c.weights[0]
	for d, v := range features {
		z += c.weights[d+1] * (v - c.mean[d]) / c.std[d]
	}
	return sigmoid(z)
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
