package rl

import "context"

// Result is what one training run produced.
type Result struct {
	Reward       float64
	TotalProfit  float64
	ModelVersion string
}

// Trainer runs one training episode. Implementations typically shell out
// to an external training job and report what it produced.
type Trainer interface {
	Train(ctx context.Context) (Result, error)
}

// NopTrainer trains nothing. It reports the currently promoted model
// version so scheduled runs still land in the training log.
type NopTrainer struct {
	registry *Registry
}

func NewNopTrainer(registry *Registry) *NopTrainer {
	return &NopTrainer{registry: registry}
}

func (t *NopTrainer) Train(ctx context.Context) (Result, error) {
	version := ""
	if t.registry != nil {
		v, err := t.registry.Current()
		if err != nil {
			return Result{}, err
		}
		version = v
	}
	return Result{ModelVersion: version}, nil
}
