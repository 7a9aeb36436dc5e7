// Package yelpdp runs the Yelp dataset jobs: merging two record sets by a
// shared key, summarizing businesses per state, extracting the reviews of a
// business subset, and inferring each user's home state.
package yelpdp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emptyOVO/yelpdp-go/mrapps"
	"github.com/emptyOVO/yelpdp-go/pipeline"
	"github.com/emptyOVO/yelpdp-go/worker"
	"github.com/emptyOVO/yelpdp-go/workspace"
	log "github.com/sirupsen/logrus"
)

const (
	JobMerge     = "merge"
	JobSummary   = "summary"
	JobExtract   = "extract"
	JobHomeState = "homestate"
)

// VisitedUsersOutput is the working-area directory of the first home state
// stage.
const VisitedUsersOutput = "visited_users_output"

// Options configures a job run.
type Options struct {
	// WorkDir is the working area identifier.
	WorkDir string
	// LocalOutput receives a copy of the final output directory.
	LocalOutput string
	Engine      worker.Config
	// Progress, when set, is called on every pipeline transition with the
	// number of stages.
	Progress func(s pipeline.State, stages int)
}

func (o *Options) withDefaults() {
	if o.WorkDir == "" {
		o.WorkDir = "yelpdp-work"
	}
	if o.LocalOutput == "" {
		o.LocalOutput = "."
	}
}

// Report describes a finished or failed job.
type Report struct {
	Job      string
	Stages   []*worker.Result
	States   []pipeline.State
	Output   []string
	Duration time.Duration
}

// JobRequest names a job and its positional inputs, in the order the command
// line takes them.
type JobRequest struct {
	Name     string
	Inputs   []string
	MergeKey string
}

var arity = map[string]int{
	JobMerge:     2,
	JobSummary:   1,
	JobExtract:   2,
	JobHomeState: 3,
}

// Jobs lists the known job names.
func Jobs() []string {
	return []string{JobMerge, JobSummary, JobExtract, JobHomeState}
}

// NormalizeJobName maps aliases such as "business-summary" to a job name.
func NormalizeJobName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, "-", "")
	n = strings.ReplaceAll(n, "_", "")
	switch n {
	case "mergejson", "mergebykey":
		return JobMerge
	case "businesssummary", "businesssummarybystate":
		return JobSummary
	case "extractusdata", "reviewdataset":
		return JobExtract
	case "searchuserhomestate", "usershomestate":
		return JobHomeState
	}
	return n
}

// ValidateJobRequest checks the job name, input count and merge key.
func ValidateJobRequest(req JobRequest) error {
	name := NormalizeJobName(req.Name)
	n, ok := arity[name]
	if !ok {
		return fmt.Errorf("unsupported job: %q", req.Name)
	}
	if len(req.Inputs) != n {
		return fmt.Errorf("job %s takes %d input(s), got %d", name, n, len(req.Inputs))
	}
	for i, in := range req.Inputs {
		if strings.TrimSpace(in) == "" {
			return fmt.Errorf("job %s input %d is empty", name, i+1)
		}
	}
	if name == JobMerge && strings.TrimSpace(req.MergeKey) == "" {
		return fmt.Errorf("job %s requires a merge key", name)
	}
	return nil
}

// Run dispatches a job request to its entry point.
func Run(ctx context.Context, opts Options, req JobRequest) (*Report, error) {
	if err := ValidateJobRequest(req); err != nil {
		return nil, err
	}
	in := req.Inputs
	switch NormalizeJobName(req.Name) {
	case JobMerge:
		return MergeByKey(ctx, opts, in[0], in[1], req.MergeKey)
	case JobSummary:
		return BusinessSummaryByState(ctx, opts, in[0])
	case JobExtract:
		return ExtractMatchingSubset(ctx, opts, in[0], in[1])
	default:
		return SearchUserHomeState(ctx, opts, in[0], in[1], in[2])
	}
}

// MergeByKey merges the records of two files that share the value of
// mergeKey into one record per key.
func MergeByKey(ctx context.Context, opts Options, left, right, mergeKey string) (*Report, error) {
	mapf := mrapps.MergeMapper(mergeKey)
	return runJob(ctx, opts, JobMerge, []string{left, right}, func(staged []string) []pipeline.Stage {
		return []pipeline.Stage{{
			Name: "merge_json",
			Inputs: []pipeline.Input{
				{Path: staged[0], Mapper: mapf},
				{Path: staged[1], Mapper: mapf},
			},
			Reducer: mrapps.MergeReduce,
		}}
	})
}

// BusinessSummaryByState counts businesses and their categories per state.
func BusinessSummaryByState(ctx context.Context, opts Options, business string) (*Report, error) {
	return runJob(ctx, opts, JobSummary, []string{business}, func(staged []string) []pipeline.Stage {
		return []pipeline.Stage{{
			Name:    "business_summary_by_state",
			Inputs:  []pipeline.Input{{Path: staged[0], Mapper: mrapps.SummaryMap}},
			Reducer: mrapps.SummaryReduce,
		}}
	})
}

// ExtractMatchingSubset keeps the reviews whose business_id appears in the
// business file.
func ExtractMatchingSubset(ctx context.Context, opts Options, business, review string) (*Report, error) {
	return runJob(ctx, opts, JobExtract, []string{business, review}, func(staged []string) []pipeline.Stage {
		return []pipeline.Stage{{
			Name: "extract_reviews",
			Inputs: []pipeline.Input{
				{Path: staged[0], Mapper: mrapps.ExtractBusinessMap},
				{Path: staged[1], Mapper: mrapps.ExtractReviewMap},
			},
			Reducer: mrapps.ExtractReduce,
		}}
	})
}

// SearchUserHomeState adds to every user who wrote a review the state they
// reviewed most. It runs two stages; the second reads the first's output.
func SearchUserHomeState(ctx context.Context, opts Options, business, review, user string) (*Report, error) {
	return runJob(ctx, opts, JobHomeState, []string{business, review, user}, func(staged []string) []pipeline.Stage {
		return []pipeline.Stage{
			{
				Name: "visited_users",
				Inputs: []pipeline.Input{
					{Path: staged[0], Mapper: mrapps.VisitedBusinessMap},
					{Path: staged[1], Mapper: mrapps.VisitedReviewMap},
				},
				Reducer:   mrapps.VisitedUsersReduce,
				OutputDir: VisitedUsersOutput,
			},
			{
				Name: "users_home_state",
				Inputs: []pipeline.Input{
					{Path: staged[2], Mapper: mrapps.HomeStateUserMap},
					{From: "visited_users", Mapper: mrapps.HomeStateVisitsMap},
				},
				Reducer: mrapps.HomeStateReduce,
			},
		}
	})
}

// runJob stages the inputs, clears stale outputs, runs the stages and copies
// the final output out. A stage without OutputDir writes the final output.
// On failure every output already written stays in the working area.
func runJob(ctx context.Context, opts Options, job string, inputs []string, build func(staged []string) []pipeline.Stage) (*Report, error) {
	opts.withDefaults()
	started := time.Now()
	report := &Report{Job: job}

	ws, err := workspace.Open(opts.WorkDir)
	if err != nil {
		return report, err
	}
	defer ws.Close()

	log.Info("[Job] Copy local files to working area")
	staged, err := ws.Stage(inputs...)
	if err != nil {
		return report, err
	}

	p := pipeline.New(worker.NewEngine(opts.Engine))
	if opts.Progress != nil {
		p.Observe(func(s pipeline.State) { opts.Progress(s, p.Len()) })
	}
	for _, s := range build(staged) {
		name := s.OutputDir
		if name == "" {
			name = workspace.OutputDir
		}
		if err := ws.ResetOutput(name); err != nil {
			return report, err
		}
		s.OutputDir = ws.Path(name)
		p.Add(s)
	}

	report.Stages, err = p.Run(ctx)
	report.States = p.History()
	report.Duration = time.Since(started)
	if err != nil {
		return report, fmt.Errorf("job %s: %w", job, err)
	}

	if err := ws.RemoveInput(); err != nil {
		log.WithError(err).Warn("[Job] remove staged input")
	}
	log.Info("[Job] Copy output folder to local working directory")
	report.Output, err = ws.CopyOut(workspace.OutputDir, opts.LocalOutput)
	if err != nil {
		return report, err
	}
	report.Duration = time.Since(started)
	return report, nil
}

// Banner is the title printed before a job starts.
func Banner(job string) string {
	titles := map[string]string{
		JobMerge:     "Merge Two Json Files",
		JobSummary:   "Summary of business by State",
		JobExtract:   "Extract US Review Data",
		JobHomeState: "Search User's Home State",
	}
	title, ok := titles[NormalizeJobName(job)]
	if !ok {
		title = job
	}
	line := strings.Repeat("#", len(title)+4)
	return line + "\n  " + title + "  \n" + line
}
