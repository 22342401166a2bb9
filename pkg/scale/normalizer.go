package scale

import "sync"

// Normalizer holds the parameters of its most recent successful Fit.
// It is safe for concurrent use.
type Normalizer struct {
	cfg Config

	mu     sync.RWMutex
	params *Params
}

// NewNormalizer creates an unfitted normalizer
func NewNormalizer(cfg Config) *Normalizer {
	return &Normalizer{cfg: cfg}
}

// FromParams restores a normalizer from previously fitted parameters
func FromParams(p Params) (*Normalizer, error) {
	if !p.Fitted() {
		return nil, ErrNotFitted
	}
	cfg := Config{Kind: p.Kind, Low: p.Low, High: p.High}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cp := p.Clone()
	return &Normalizer{cfg: cfg, params: &cp}, nil
}

// Fit computes new parameters. On error the previous parameters are kept.
func (n *Normalizer) Fit(values [][]float64) error {
	p, err := Fit(values, n.cfg)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.params = &p
	n.mu.Unlock()
	return nil
}

// Transform scales values with the fitted parameters
func (n *Normalizer) Transform(values [][]float64) ([][]float64, error) {
	p, err := n.Params()
	if err != nil {
		return nil, err
	}
	return p.Transform(values)
}

// InverseTransform maps scaled values back to original units
func (n *Normalizer) InverseTransform(values [][]float64) ([][]float64, error) {
	p, err := n.Params()
	if err != nil {
		return nil, err
	}
	return p.InverseTransform(values)
}

// FitTransform fits on values and returns them scaled
func (n *Normalizer) FitTransform(values [][]float64) ([][]float64, error) {
	if err := n.Fit(values); err != nil {
		return nil, err
	}
	return n.Transform(values)
}

// Params returns a copy of the fitted parameters
func (n *Normalizer) Params() (Params, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.params == nil {
		return Params{}, ErrNotFitted
	}
	return n.params.Clone(), nil
}

// IsFitted returns true once Fit has succeeded
func (n *Normalizer) IsFitted() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.params != nil
}
