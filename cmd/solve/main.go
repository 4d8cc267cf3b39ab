package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/nkrogh/deepcube/agent"
	"github.com/nkrogh/deepcube/cube"
	"github.com/nkrogh/deepcube/inference"
	"github.com/nkrogh/deepcube/search"
	"github.com/nkrogh/deepcube/store"
	"github.com/nkrogh/deepcube/timing"
)

var totalSolves atomic.Int64
var totalSolved atomic.Int64
var totalStates atomic.Int64
var totalEvaluations atomic.Int64

// instrumentedEvaluator counts batched evaluator calls for the stats
// views.
type instrumentedEvaluator struct {
	inference.Evaluator
}

func (e *instrumentedEvaluator) Evaluate(states []cube.State, wantPolicy, wantValue bool) ([]inference.Policy, []float32, error) {
	totalEvaluations.Add(1)
	return e.Evaluator.Evaluate(states, wantPolicy, wantValue)
}

type SolveUpdate struct {
	WorkerID   int
	Solved     bool
	PathLength int
	States     int
	Duration   time.Duration
}

type solveWriteRequest struct {
	rows []store.SolveRecord
}

type model struct {
	solves      int
	solved      int
	states      int64
	evals       int64
	startTime   time.Time
	recentLines []string
	updates     chan SolveUpdate
}

func initialModel(updates chan SolveUpdate) model {
	return model{
		startTime: time.Now(),
		updates:   updates,
	}
}

type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func waitForUpdate(updates chan SolveUpdate) tea.Cmd {
	return func() tea.Msg {
		return <-updates
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case TickMsg:
		m.states = totalStates.Load()
		m.evals = totalEvaluations.Load()
		return m, tickCmd()
	case SolveUpdate:
		m.solves++
		if msg.Solved {
			m.solved++
		}
		line := fmt.Sprintf("Worker %d: solved=%t moves=%d states=%d in %s",
			msg.WorkerID, msg.Solved, msg.PathLength, msg.States, msg.Duration.Round(time.Millisecond))
		m.recentLines = append([]string{line}, m.recentLines...)
		if len(m.recentLines) > 10 {
			m.recentLines = m.recentLines[:10]
		}
		return m, waitForUpdate(m.updates)
	}
	return m, nil
}

func (m model) View() string {
	duration := time.Since(m.startTime)
	solvesPerSec := float64(m.solves) / duration.Seconds()
	statesPerSec := float64(m.states) / duration.Seconds()
	evalsPerSec := float64(m.evals) / duration.Seconds()
	if duration.Seconds() < 1 {
		solvesPerSec = 0
		statesPerSec = 0
		evalsPerSec = 0
	}
	rate := 0.0
	if m.solves > 0 {
		rate = float64(m.solved) / float64(m.solves) * 100
	}

	s := fmt.Sprintf("Attempts:       %d\n", m.solves)
	s += fmt.Sprintf("Solved:         %d (%.1f%%)\n", m.solved, rate)
	s += fmt.Sprintf("States Explored: %d\n", m.states)
	s += fmt.Sprintf("Evaluator Calls: %d\n", m.evals)
	s += fmt.Sprintf("Duration:       %s\n", duration.Round(time.Second))
	s += fmt.Sprintf("Solves/Sec:     %.2f\n", solvesPerSec)
	s += fmt.Sprintf("States/Sec:     %.2f\n", statesPerSec)
	s += fmt.Sprintf("Evals/Sec:      %.2f\n\n", evalsPerSec)

	s += "Recent Solves:\n"
	for _, line := range m.recentLines {
		s += line + "\n"
	}

	s += "\nPress q to quit.\n"
	return s
}

func movesToInt32(moves []cube.Move) []int32 {
	out := make([]int32, len(moves))
	for i, mv := range moves {
		out[i] = int32(mv)
	}
	return out
}

func newSearcher(solver string, eval inference.Evaluator, mctsCfg search.MCTSConfig, astarCfg search.AStarConfig, collector timing.Collector) (search.Searcher, error) {
	switch solver {
	case "mcts":
		return search.NewMCTS(eval, mctsCfg, collector), nil
	case "astar":
		return search.NewAStar(eval, astarCfg, collector), nil
	default:
		return nil, fmt.Errorf("unknown solver %q (want mcts or astar)", solver)
	}
}

func main() {
	modelPath := flag.String("model", "models/cube_net.onnx", "Path to the ONNX policy/value model")
	outDir := flag.String("out-dir", "data/solves", "Output directory for solve-record parquet batches")
	logPath := flag.String("log-file", "solve.log", "Log file (the TUI owns the terminal)")
	workers := flag.Int("workers", 4, "Number of solver workers")
	solver := flag.String("solver", "mcts", "Search engine: mcts or astar")
	scrambleDepth := flag.Int("scramble-depth", 12, "Number of random moves per scramble")
	timeLimit := flag.Duration("time-limit", 10*time.Second, "Search time budget per solve")
	maxStates := flag.Int("max-states", 0, "Node budget per solve (0 = unlimited)")
	maxSolves := flag.Int64("max-solves", 0, "If > 0, stop after this many attempts (across all workers)")
	solvesPerFlush := flag.Int("solves-per-flush", 100, "Number of records to buffer per parquet flush")
	onnxSessions := flag.Int("onnx-sessions", 1, "Number of ONNX Runtime sessions to run in parallel")
	exploration := flag.Float64("exploration", 1.0, "MCTS exploration constant")
	virtualLoss := flag.Float64("virtual-loss", 0.005, "MCTS virtual loss per in-flight pick")
	sims := flag.Int("sims", 10, "MCTS simulations per iteration")
	mergePaths := flag.Bool("merge-paths", false, "Let MCTS simulations traverse transpositions on their own path")
	astarWeight := flag.Float64("astar-weight", 1.0, "A* heuristic weight lambda")
	wsAddr := flag.String("ws-addr", "", "Address for the live-stats websocket endpoint (empty disables)")
	flag.Parse()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	// Log to a file so the TUI can own the terminal.
	logFile, err := os.OpenFile(*logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := zerolog.New(logFile).With().Timestamp().Logger()

	if _, err := os.Stat(*modelPath); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "model file not found: %s\n", *modelPath)
		os.Exit(1)
	}

	var eval inference.Evaluator
	var closer interface{ Close() error }
	if *onnxSessions <= 1 {
		client, err := inference.NewOnnxClient(*modelPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "create onnx client: %v\n", err)
			os.Exit(1)
		}
		eval = client
		closer = client
	} else {
		pool, err := inference.NewOnnxPool(*modelPath, *onnxSessions)
		if err != nil {
			fmt.Fprintf(os.Stderr, "create onnx pool: %v\n", err)
			os.Exit(1)
		}
		eval = pool
		closer = pool
	}
	defer func() {
		if closer != nil {
			_ = closer.Close()
		}
	}()
	eval = &instrumentedEvaluator{Evaluator: eval}

	mctsCfg := search.MCTSConfig{
		Exploration: *exploration,
		VirtualLoss: *virtualLoss,
		Workers:     *sims,
		Policy:      search.PolicyNet,
		MergePaths:  *mergePaths,
	}
	astarCfg := search.AStarConfig{Weight: *astarWeight}
	if _, err := newSearcher(*solver, eval, mctsCfg, astarCfg, nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.Info().
		Str("solver", *solver).
		Int("workers", *workers).
		Int("scramble_depth", *scrambleDepth).
		Dur("time_limit", *timeLimit).
		Msg("starting solve harness")

	updates := make(chan SolveUpdate, *workers)
	writeReqs := make(chan solveWriteRequest, (*workers)*4)

	writerDone := make(chan struct{})
	go func() {
		parquetWriterLoop(logger, *outDir, *solvesPerFlush, writeReqs)
		close(writerDone)
	}()

	var hub *StatsHub
	if *wsAddr != "" {
		hub = NewStatsHub()
		go hub.Run(ctx.Done())
		go serveStats(ctx, logger, hub, *wsAddr)
	}

	var workerWG sync.WaitGroup
	for i := 0; i < *workers; i++ {
		workerWG.Add(1)
		go func(workerID int) {
			defer workerWG.Done()
			logger.Info().Int("worker", workerID).Msg("worker started")

			var collector timing.TickTock
			searcher, err := newSearcher(*solver, eval, mctsCfg, astarCfg, &collector)
			if err != nil {
				logger.Error().Err(err).Int("worker", workerID).Msg("build searcher")
				return
			}
			ag := agent.New(*solver, searcher)

			for {
				select {
				case <-ctx.Done():
					logger.Info().Int("worker", workerID).Str("phases", collector.String()).Msg("worker stopping")
					return
				default:
				}

				state, scramble := cube.Scramble(*scrambleDepth)
				start := time.Now()
				solved, pathLen, err := ag.GenerateActionQueue(state, *timeLimit, *maxStates)
				elapsed := time.Since(start)
				if err != nil {
					logger.Error().Err(err).Int("worker", workerID).Msg("solve failed")
					cancel()
					return
				}
				path := ag.Actions()

				totalStates.Add(int64(ag.Len()))
				if solved {
					totalSolved.Add(1)
				}
				attempts := totalSolves.Add(1)
				if *maxSolves > 0 && attempts >= *maxSolves {
					cancel()
				}

				rec := store.SolveRecord{
					Solver:        *solver,
					ScrambleDepth: int32(*scrambleDepth),
					Scramble:      movesToInt32(scramble),
					Solved:        solved,
					PathLength:    int32(pathLen),
					Path:          movesToInt32(path),
					States:        int64(ag.Len()),
					DurationMS:    elapsed.Milliseconds(),
					UnixMS:        start.UnixMilli(),
				}
				writeReqs <- solveWriteRequest{rows: []store.SolveRecord{rec}}

				if hub != nil {
					hub.Publish(snapshotStats("solve"))
				}

				// Avoid blocking shutdown if the UI loop stops consuming.
				select {
				case updates <- SolveUpdate{
					WorkerID:   workerID,
					Solved:     solved,
					PathLength: pathLen,
					States:     ag.Len(),
					Duration:   elapsed,
				}:
				default:
				}
			}
		}(i)
	}

	go func() {
		<-ctx.Done()
		workerWG.Wait()
		close(writeReqs)
	}()

	p := tea.NewProgram(initialModel(updates), tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	if _, err := p.Run(); err != nil {
		logger.Error().Err(err).Msg("tui exited")
	}
	cancel()

	workerWG.Wait()
	<-writerDone
	logger.Info().
		Int64("attempts", totalSolves.Load()).
		Int64("solved", totalSolved.Load()).
		Msg("shutdown complete, final parquet flush done")
}

func parquetWriterLoop(logger zerolog.Logger, outDir string, solvesPerFlush int, in <-chan solveWriteRequest) {
	if solvesPerFlush <= 0 {
		solvesPerFlush = 100
	}

	// Records stream into a staged batch file; Finalize renames it into
	// outDir so readers never see a partial batch.
	var w *store.BatchWriter

	finalize := func(final bool) {
		if w == nil {
			return
		}
		outPath, rows, err := w.Finalize()
		w = nil
		if err != nil {
			logger.Error().Err(err).Bool("final", final).Msg("parquet flush failed")
			return
		}
		if rows > 0 {
			logger.Info().Str("path", outPath).Int("rows", rows).Bool("final", final).Msg("parquet flush ok")
		}
	}

	for req := range in {
		if len(req.rows) == 0 {
			continue
		}
		if w == nil {
			var err error
			w, err = store.NewBatchWriter(outDir)
			if err != nil {
				logger.Error().Err(err).Msg("open parquet batch")
				continue
			}
		}
		if err := w.WriteRows(req.rows); err != nil {
			logger.Error().Err(err).Int("rows", len(req.rows)).Msg("buffer solve records")
		}
		if w.BufferedRows() >= solvesPerFlush {
			finalize(false)
		}
	}
	finalize(true)
}
