package inference

import (
	"fmt"
	"sync/atomic"

	"github.com/nkrogh/deepcube/cube"
)

// OnnxPool fans Evaluate calls out across multiple OnnxClient
// instances round-robin. Each client owns its own ORT session, so
// independent solvers can run inference in parallel.
//
// Note: ORT environment initialization is process-global; OnnxClient
// handles that internally.
type OnnxPool struct {
	clients []*OnnxClient
	rr      atomic.Uint64
}

func NewOnnxPool(modelPath string, sessions int) (*OnnxPool, error) {
	if sessions <= 0 {
		sessions = 1
	}

	clients := make([]*OnnxClient, 0, sessions)
	for i := 0; i < sessions; i++ {
		c, err := NewOnnxClient(modelPath)
		if err != nil {
			for _, created := range clients {
				_ = created.Close()
			}
			return nil, fmt.Errorf("create onnx client %d/%d: %w", i+1, sessions, err)
		}
		clients = append(clients, c)
	}

	return &OnnxPool{clients: clients}, nil
}

func (p *OnnxPool) Close() error {
	var firstErr error
	for _, c := range p.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Evaluate implements Evaluator.
func (p *OnnxPool) Evaluate(states []cube.State, wantPolicy, wantValue bool) ([]Policy, []float32, error) {
	if len(p.clients) == 0 {
		return nil, nil, fmt.Errorf("onnx pool has no clients")
	}
	idx := int(p.rr.Add(1)-1) % len(p.clients)
	return p.clients[idx].Evaluate(states, wantPolicy, wantValue)
}
