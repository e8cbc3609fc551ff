package election

import (
	"context"
	"fmt"

	"github.com/danl5/ringelect/pkg/common"
	"github.com/danl5/ringelect/pkg/model"
)

// Engine is one election protocol. An engine value drives a single process.
type Engine interface {
	Algorithm() model.Algorithm
	// Elect returns once the process knows the leader and has passed the
	// announcement on.
	Elect(ctx context.Context, p *Process) error
}

// NewEngine returns a fresh engine for algorithm.
func NewEngine(algorithm model.Algorithm) (Engine, error) {
	switch algorithm {
	case model.AlgorithmDoubling:
		return newDoubling(), nil
	case model.AlgorithmUnidirectional:
		return &unidirectional{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownAlgorithm, algorithm)
	}
}
