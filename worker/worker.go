package worker

import (
	"bufio"
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emptyOVO/yelpdp-go/rpc"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Config tunes the local grouping runtime.
type Config struct {
	Reducers    int
	Workers     int
	InRAM       bool
	MaxAttempts int
	SplitSize   int64
	// ShuffleAddr, when set, makes reducers pull intermediate partitions
	// through the gRPC Shuffle service listening on this address.
	ShuffleAddr string
	TempDir     string
}

func (c *Config) withDefaults() {
	if c.Reducers <= 0 {
		c.Reducers = 1
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 2
	}
	if c.SplitSize <= 0 {
		c.SplitSize = 32 << 20
	}
}

// Input is one input file with the mapper that understands its records.
type Input struct {
	Path   string
	Mapper MapFormat
}

// Job is one map/shuffle/reduce pass.
type Job struct {
	Name      string
	Inputs    []Input
	Reducer   ReduceFormat
	OutputDir string
}

// Counters are totals over successful task attempts.
type Counters struct {
	MapInputRecords  int64
	MapOutputRecords int64
	ReduceGroups     int64
	OutputRecords    int64
}

// Result describes a finished job.
type Result struct {
	Job         string
	RunID       string
	OutputFiles []string
	Counters    Counters
	Duration    time.Duration
}

// Engine runs jobs on a pool of goroutines. All values sharing a key reach
// exactly one reducer call.
type Engine struct {
	cfg    Config
	mux    sync.Mutex
	active int
	dirs   map[string]bool
	rpc.UnimplementedShuffleServer
}

func NewEngine(cfg Config) *Engine {
	cfg.withDefaults()
	return &Engine{cfg: cfg, dirs: make(map[string]bool)}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) Run(ctx context.Context, job Job) (*Result, error) {
	if err := validateJob(job); err != nil {
		return nil, err
	}
	started := time.Now()
	runID := uuid.New().String()
	logger := log.WithFields(log.Fields{"job": job.Name, "run": runID})

	e.setBusy(true)
	defer e.setBusy(false)

	if err := prepareOutputDir(job.OutputDir); err != nil {
		return nil, err
	}

	imdDir, err := e.imdDir(runID)
	if err != nil {
		return nil, err
	}
	defer e.releaseIMDDir(imdDir)

	var splits []fileSplit
	for i, in := range job.Inputs {
		s, err := splitFile(in.Path, e.cfg.SplitSize, i)
		if err != nil {
			return nil, err
		}
		splits = append(splits, s...)
	}

	res := &Result{Job: job.Name, RunID: runID}

	logger.Infof("[Engine] Start Map phase: %d task(s)", len(splits))
	imdFiles := make([][]string, len(splits))
	err = e.runTasks(ctx, len(splits), func(ctx context.Context, t int) error {
		name := fmt.Sprintf("map task %d (%s)", t, filepath.Base(splits[t].FileName))
		return e.withRetry(ctx, name, func() error {
			files, c, err := e.mapTask(t, splits[t], job.Inputs[splits[t].input].Mapper, imdDir)
			if err != nil {
				return err
			}
			imdFiles[t] = files
			atomic.AddInt64(&res.Counters.MapInputRecords, c.MapInputRecords)
			atomic.AddInt64(&res.Counters.MapOutputRecords, c.MapOutputRecords)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("job %s map phase: %w", job.Name, err)
	}
	logger.Info("[Engine] End Map phase")

	fetcher, closeFetcher, err := e.fetcher(ctx)
	if err != nil {
		return nil, err
	}
	defer closeFetcher()

	logger.Infof("[Engine] Start Reduce phase: %d task(s)", e.cfg.Reducers)
	outputs := make([]string, e.cfg.Reducers)
	err = e.runTasks(ctx, e.cfg.Reducers, func(ctx context.Context, r int) error {
		var files []string
		for _, perReducer := range imdFiles {
			files = append(files, perReducer[r])
		}
		name := fmt.Sprintf("reduce task %d", r)
		return e.withRetry(ctx, name, func() error {
			out, c, err := e.reduceTask(ctx, r, files, job.Reducer, fetcher, job.OutputDir)
			if err != nil {
				return err
			}
			outputs[r] = out
			atomic.AddInt64(&res.Counters.ReduceGroups, c.ReduceGroups)
			atomic.AddInt64(&res.Counters.OutputRecords, c.OutputRecords)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("job %s reduce phase: %w", job.Name, err)
	}
	logger.Info("[Engine] End Reduce phase")

	res.OutputFiles = outputs
	res.Duration = time.Since(started)
	logger.WithFields(log.Fields{
		"map_input":  res.Counters.MapInputRecords,
		"map_output": res.Counters.MapOutputRecords,
		"groups":     res.Counters.ReduceGroups,
		"output":     res.Counters.OutputRecords,
	}).Infof("[Engine] Job finished in %s", res.Duration)
	return res, nil
}

func validateJob(job Job) error {
	if len(job.Inputs) == 0 {
		return fmt.Errorf("job %s has no inputs", job.Name)
	}
	for i, in := range job.Inputs {
		if in.Path == "" || in.Mapper == nil {
			return fmt.Errorf("job %s input %d needs a path and a mapper", job.Name, i)
		}
	}
	if job.Reducer == nil {
		return fmt.Errorf("job %s has no reducer", job.Name)
	}
	if job.OutputDir == "" {
		return fmt.Errorf("job %s has no output directory", job.Name)
	}
	return nil
}

// prepareOutputDir refuses to overwrite an existing non-empty directory.
func prepareOutputDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err == nil && len(entries) > 0 {
		return fmt.Errorf("output directory %s already exists", dir)
	}
	return os.MkdirAll(dir, 0o755)
}

func reducerForKey(key string, nReduce int) int {
	if nReduce <= 0 {
		panic("nReduce must be > 0")
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32()&0x7fffffff) % nReduce
}

func (e *Engine) mapTask(taskID int, split fileSplit, mapf MapFormat, imdDir string) ([]string, Counters, error) {
	var c Counters
	content, err := partialContent(split)
	if err != nil {
		return nil, c, err
	}

	log.Tracef("[Engine] Start Mapping task %d", taskID)
	ctx := NewCollector()
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		c.MapInputRecords++
		if err := mapf(line, ctx); err != nil {
			return nil, c, fmt.Errorf("%s: %w", split.FileName, err)
		}
	}
	log.Tracef("[Engine] Finish Mapping task %d", taskID)

	// Partition result into R piece
	imdKV := make([][]KV, e.cfg.Reducers)
	for _, kv := range ctx.Intermediate() {
		reducerID := reducerForKey(kv.Key, e.cfg.Reducers)
		imdKV[reducerID] = append(imdKV[reducerID], kv)
	}
	c.MapOutputRecords = int64(len(ctx.Intermediate()))

	filenames, err := writeIMDToLocalFile(imdKV, imdDir, taskID)
	if err != nil {
		return nil, c, err
	}
	return filenames, c, nil
}

func writeIMDToLocalFile(imdKV [][]KV, dir string, taskID int) ([]string, error) {
	// Filenames must stay aligned with reducer index, otherwise reducers
	// would read the wrong partitions.
	filenames := make([]string, len(imdKV))
	errs := make([]error, len(imdKV))
	var wg sync.WaitGroup
	for r, kvs := range imdKV {
		wg.Add(1)
		go func(r int, s []KV) {
			defer wg.Done()
			fname := filepath.Join(dir, fmt.Sprintf("imd-%d-%d.txt", taskID, r))
			errs[r] = os.WriteFile(fname, []byte(encodeIMDKVs(s)), 0o644)
			filenames[r] = fname
		}(r, kvs)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return filenames, nil
}

func (e *Engine) reduceTask(ctx context.Context, r int, files []string, reducef ReduceFormat, fetcher IMDFetcher, outDir string) (string, Counters, error) {
	var c Counters

	log.Tracef("[Engine] Get intermediate files for reducer %d", r)
	var imdKVs []KV
	for _, f := range files {
		kvs, err := fetcher.GetIMDData(ctx, f)
		if err != nil {
			return "", c, err
		}
		imdKVs = append(imdKVs, kvs...)
	}

	// Stable sort keeps values in map task order within one key.
	sort.Stable(byKey(imdKVs))

	outputFile := filepath.Join(outDir, fmt.Sprintf("part-r-%05d", r))
	tmpFile := filepath.Join(outDir, fmt.Sprintf(".part-r-%05d.tmp", r))
	ofile, err := os.Create(tmpFile)
	if err != nil {
		return "", c, err
	}
	defer os.Remove(tmpFile)
	defer ofile.Close()
	w := bufio.NewWriterSize(ofile, 1<<20)

	log.Tracef("[Engine] Start Reducing %d", r)
	reduceCtx := NewCollector()
	i := 0
	for i < len(imdKVs) {
		if err := ctx.Err(); err != nil {
			return "", c, err
		}
		j := i + 1
		for j < len(imdKVs) && imdKVs[j].Key == imdKVs[i].Key {
			j++
		}
		values := make([]string, 0, j-i)
		for k := i; k < j; k++ {
			values = append(values, imdKVs[k].Value)
		}
		reduceCtx.reset()
		if err := reducef(imdKVs[i].Key, values, reduceCtx); err != nil {
			return "", c, fmt.Errorf("key %q: %w", imdKVs[i].Key, err)
		}
		for _, out := range reduceCtx.Output() {
			if out.Key == "" {
				fmt.Fprintf(w, "%v\n", out.Value)
			} else {
				fmt.Fprintf(w, "%v %v\n", out.Key, out.Value)
			}
			c.OutputRecords++
		}
		c.ReduceGroups++
		i = j
	}
	if err := w.Flush(); err != nil {
		return "", c, err
	}
	if err := ofile.Close(); err != nil {
		return "", c, err
	}
	if err := os.Rename(tmpFile, outputFile); err != nil {
		return "", c, err
	}
	log.Tracef("[Engine] End Reducing %d", r)
	return outputFile, c, nil
}

// runTasks runs n tasks on at most cfg.Workers goroutines and stops handing
// out tasks after the first failure.
func (e *Engine) runTasks(ctx context.Context, n int, run func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workerN := e.cfg.Workers
	if workerN > n {
		workerN = n
	}

	jobs := make(chan int)
	errCh := make(chan error, 1)
	var wg sync.WaitGroup
	for i := 0; i < workerN; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				if err := run(ctx, t); err != nil {
					select {
					case errCh <- err:
					default:
					}
					cancel()
					return
				}
			}
		}()
	}

LOOP:
	for t := 0; t < n; t++ {
		select {
		case jobs <- t:
		case <-ctx.Done():
			break LOOP
		}
	}
	close(jobs)
	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
	}
	return ctx.Err()
}

// withRetry re-runs a failed task attempt up to cfg.MaxAttempts times.
func (e *Engine) withRetry(ctx context.Context, name string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := runAttempt(fn)
		if err == nil {
			return nil
		}
		if attempt >= e.cfg.MaxAttempts || ctx.Err() != nil {
			return fmt.Errorf("%s failed after %d attempt(s): %w", name, attempt, err)
		}
		log.WithError(err).Warnf("[Engine] %s attempt %d failed, retrying", name, attempt)
	}
}

func runAttempt(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func (e *Engine) imdDir(runID string) (string, error) {
	baseDir := e.cfg.TempDir
	if e.cfg.InRAM {
		if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
			baseDir = "/dev/shm"
		}
	}
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	dir := filepath.Join(baseDir, "imd-"+runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	e.mux.Lock()
	e.dirs[dir] = true
	e.mux.Unlock()
	return dir, nil
}

func (e *Engine) releaseIMDDir(dir string) {
	e.mux.Lock()
	delete(e.dirs, dir)
	e.mux.Unlock()
	if err := os.RemoveAll(dir); err != nil {
		log.WithError(err).Warnf("[Engine] remove intermediate dir %s", dir)
	}
}

func (e *Engine) setBusy(busy bool) {
	e.mux.Lock()
	if busy {
		e.active++
	} else {
		e.active--
	}
	e.mux.Unlock()
}

func (e *Engine) workerState() rpc.WorkerState {
	e.mux.Lock()
	defer e.mux.Unlock()
	if e.active > 0 {
		return rpc.WorkerState_BUSY
	}
	return rpc.WorkerState_IDLE
}
