package inference

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/nkrogh/deepcube/cube"
)

const (
	policySize = int(cube.NumMoves)
	valueSize  = 1
)

// OnnxClient runs batched policy/value inference through a single ONNX
// Runtime session. The model takes a [N, EncodedSize] float32 input
// named "input" and produces "policy" [N, 12] and "value" [N, 1].
//
// Oversized batches that the runtime rejects (typically GPU memory
// exhaustion) are retried in halves; the error is only surfaced once a
// single-state batch fails.
type OnnxClient struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
}

var ortInitOnce sync.Once
var ortInitErr error

func NewOnnxClient(modelPath string) (*OnnxClient, error) {
	if runtime.GOOS == "linux" {
		if p := os.Getenv("ORT_SHARED_LIBRARY_PATH"); p != "" {
			ort.SetSharedLibraryPath(p)
		} else {
			cwd, _ := os.Getwd()
			candidates := []string{
				"libonnxruntime.so",
				"libonnxruntime.so.1",
			}
			for _, name := range candidates {
				abs := filepath.Join(cwd, name)
				if _, err := os.Stat(abs); err == nil {
					ort.SetSharedLibraryPath(abs)
					break
				}
			}
		}
	}

	ortInitOnce.Do(func() {
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("init onnxruntime: %w", ortInitErr)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	// The solver already batches per search iteration; keep the
	// runtime single-threaded to avoid contention with search workers.
	options.SetIntraOpNumThreads(1)
	options.SetInterOpNumThreads(1)

	// Use CUDA when available, otherwise stay on CPU.
	if cudaOptions, err := ort.NewCUDAProviderOptions(); err == nil {
		defer cudaOptions.Destroy()
		_ = options.AppendExecutionProviderCUDA(cudaOptions)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{"input"}, []string{"policy", "value"}, options)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &OnnxClient{session: session}, nil
}

func (c *OnnxClient) Close() error {
	return c.session.Destroy()
}

// Evaluate implements Evaluator.
func (c *OnnxClient) Evaluate(states []cube.State, wantPolicy, wantValue bool) ([]Policy, []float32, error) {
	if len(states) == 0 {
		return nil, nil, nil
	}

	policies, values, err := evaluateSplit(states, c.run)
	if err != nil {
		return nil, nil, err
	}
	if !wantPolicy {
		policies = nil
	}
	if !wantValue {
		values = nil
	}
	return policies, values, nil
}

// evaluateSplit runs the batch, recursively halving it when run
// rejects it. Only a failing single-state batch is fatal.
func evaluateSplit(states []cube.State, run func([]cube.State) ([]Policy, []float32, error)) ([]Policy, []float32, error) {
	policies, values, err := run(states)
	if err == nil {
		return policies, values, nil
	}
	if len(states) == 1 {
		return nil, nil, fmt.Errorf("onnx inference failed for a single state: %w", err)
	}

	mid := len(states) / 2
	left, leftV, err := evaluateSplit(states[:mid], run)
	if err != nil {
		return nil, nil, err
	}
	right, rightV, err := evaluateSplit(states[mid:], run)
	if err != nil {
		return nil, nil, err
	}
	return append(left, right...), append(leftV, rightV...), nil
}

func (c *OnnxClient) run(states []cube.State) ([]Policy, []float32, error) {
	n := int64(len(states))
	input := cube.EncodeBatch(states)

	c.mu.Lock()
	defer c.mu.Unlock()

	inputTensor, err := ort.NewTensor(ort.NewShape(n, int64(cube.EncodedSize)), input)
	if err != nil {
		return nil, nil, err
	}
	defer inputTensor.Destroy()

	policyTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(n, int64(policySize)))
	if err != nil {
		return nil, nil, err
	}
	defer policyTensor.Destroy()

	valueTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(n, int64(valueSize)))
	if err != nil {
		return nil, nil, err
	}
	defer valueTensor.Destroy()

	err = c.session.Run([]ort.Value{inputTensor}, []ort.Value{policyTensor, valueTensor})
	if err != nil {
		return nil, nil, err
	}

	policyData := policyTensor.GetData()
	valueData := valueTensor.GetData()

	policies := make([]Policy, len(states))
	values := make([]float32, len(states))
	for i := range states {
		copy(policies[i][:], policyData[i*policySize:(i+1)*policySize])
		values[i] = valueData[i*valueSize]
	}
	return policies, values, nil
}
