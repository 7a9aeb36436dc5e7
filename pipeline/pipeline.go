// Package pipeline sequences dependent grouping stages. A stage declares the
// stages whose output it reads; it starts only once they are done, and the
// first failure aborts the pipeline without touching output already written.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/emptyOVO/yelpdp-go/worker"
	log "github.com/sirupsen/logrus"
)

// Runner executes one grouping job.
type Runner interface {
	Run(ctx context.Context, job worker.Job) (*worker.Result, error)
}

// Input feeds a stage either from a file or, when From is set, from every
// output file of the named stage.
type Input struct {
	Path   string
	From   string
	Mapper worker.MapFormat
}

type Stage struct {
	Name      string
	Inputs    []Input
	Reducer   worker.ReduceFormat
	OutputDir string
}

func (s *Stage) deps() []string {
	var out []string
	for _, in := range s.Inputs {
		if in.From != "" {
			out = append(out, in.From)
		}
	}
	return out
}

type Pipeline struct {
	runner  Runner
	stages  []*Stage
	mux     sync.Mutex
	state   State
	history []State
	observe []func(State)
}

func New(runner Runner) *Pipeline {
	return &Pipeline{runner: runner, history: []State{{Status: Pending}}}
}

// Add appends a stage. Stages may be added in any order.
func (p *Pipeline) Add(s Stage) *Pipeline {
	p.stages = append(p.stages, &s)
	return p
}

// Observe registers fn to be called on every transition.
func (p *Pipeline) Observe(fn func(State)) *Pipeline {
	p.observe = append(p.observe, fn)
	return p
}

// Len is the number of stages added.
func (p *Pipeline) Len() int {
	return len(p.stages)
}

// State returns the current state.
func (p *Pipeline) State() State {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.state
}

// History returns every state the pipeline went through.
func (p *Pipeline) History() []State {
	p.mux.Lock()
	defer p.mux.Unlock()
	out := make([]State, len(p.history))
	copy(out, p.history)
	return out
}

func (p *Pipeline) transition(s State) {
	p.mux.Lock()
	p.state = s
	p.history = append(p.history, s)
	p.mux.Unlock()
	log.Debugf("[Pipeline] %s", s)
	for _, fn := range p.observe {
		fn(s)
	}
}

// Run executes every stage in dependency order and returns the results in
// that order.
func (p *Pipeline) Run(ctx context.Context) ([]*worker.Result, error) {
	if st := p.State(); st.Status != Pending {
		return nil, fmt.Errorf("pipeline already ran (%s)", st)
	}
	order, err := p.order()
	if err != nil {
		p.transition(State{Status: Failed})
		return nil, err
	}

	outputs := make(map[string][]string, len(order))
	results := make([]*worker.Result, 0, len(order))
	for i, s := range order {
		p.transition(State{Stage: i + 1, Status: Running})
		log.Infof("[Pipeline] Start stage %d/%d: %s", i+1, len(order), s.Name)

		job := worker.Job{Name: s.Name, Reducer: s.Reducer, OutputDir: s.OutputDir}
		for _, in := range s.Inputs {
			if in.From == "" {
				job.Inputs = append(job.Inputs, worker.Input{Path: in.Path, Mapper: in.Mapper})
				continue
			}
			for _, f := range outputs[in.From] {
				job.Inputs = append(job.Inputs, worker.Input{Path: f, Mapper: in.Mapper})
			}
		}

		res, err := p.runner.Run(ctx, job)
		if err != nil {
			p.transition(State{Stage: i + 1, Status: Failed})
			return results, fmt.Errorf("stage %s: %w", s.Name, err)
		}
		outputs[s.Name] = res.OutputFiles
		results = append(results, res)
		p.transition(State{Stage: i + 1, Status: Done})
		log.Infof("[Pipeline] Finish stage %d/%d: %s", i+1, len(order), s.Name)
	}
	return results, nil
}

// order sorts the stages topologically. Independent stages keep the order
// they were added in.
func (p *Pipeline) order() ([]*Stage, error) {
	if len(p.stages) == 0 {
		return nil, fmt.Errorf("pipeline has no stages")
	}
	byName := make(map[string]*Stage, len(p.stages))
	for _, s := range p.stages {
		if s.Name == "" {
			return nil, fmt.Errorf("stage without a name")
		}
		if _, dup := byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate stage %q", s.Name)
		}
		byName[s.Name] = s
	}
	for _, s := range p.stages {
		for _, d := range s.deps() {
			if _, ok := byName[d]; !ok {
				return nil, fmt.Errorf("stage %q depends on unknown stage %q", s.Name, d)
			}
			if d == s.Name {
				return nil, fmt.Errorf("stage %q depends on itself", s.Name)
			}
		}
	}

	done := make(map[string]bool, len(p.stages))
	order := make([]*Stage, 0, len(p.stages))
	for len(order) < len(p.stages) {
		progressed := false
		for _, s := range p.stages {
			if done[s.Name] || !ready(s, done) {
				continue
			}
			done[s.Name] = true
			order = append(order, s)
			progressed = true
		}
		if !progressed {
			return nil, fmt.Errorf("stage dependencies form a cycle")
		}
	}
	return order, nil
}

func ready(s *Stage, done map[string]bool) bool {
	for _, d := range s.deps() {
		if !done[d] {
			return false
		}
	}
	return true
}
