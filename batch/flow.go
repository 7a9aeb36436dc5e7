package batch

import (
	"context"
	"time"

	"github.com/emptyOVO/yelpdp-go"
	"github.com/emptyOVO/yelpdp-go/batch/mysql_batch"
	"github.com/emptyOVO/yelpdp-go/batch/redis_batch"
	"github.com/emptyOVO/yelpdp-go/worker"
	log "github.com/sirupsen/logrus"
)

// FlowBenchmarkResult captures job/sink stage durations.
type FlowBenchmarkResult struct {
	JobDuration   time.Duration
	SinkDuration  time.Duration
	TotalDuration time.Duration
	SinkedRecords int
	Report        *yelpdp.Report
}

// RunFlow executes job -> sink defined by FlowConfig.
func RunFlow(ctx context.Context, cfg FlowConfig) error {
	_, err := runFlowInternal(ctx, cfg, false)
	return err
}

// RunFlowBenchmark executes a config-driven flow and reports stage durations.
func RunFlowBenchmark(ctx context.Context, cfg FlowConfig) (FlowBenchmarkResult, error) {
	return runFlowInternal(ctx, cfg, true)
}

func runFlowInternal(ctx context.Context, cfg FlowConfig, collectDur bool) (FlowBenchmarkResult, error) {
	var bench FlowBenchmarkResult
	started := time.Now()

	cfg.withDefaults()
	if err := ValidateFlowConfig(cfg); err != nil {
		return bench, err
	}
	req := cfg.jobRequest()

	sJob := time.Now()
	report, err := DefaultRunner().Run(ctx, cfg.options(), req)
	bench.Report = report
	if err != nil {
		return bench, err
	}
	if collectDur {
		bench.JobDuration = time.Since(sJob)
	}

	sSink := time.Now()
	switch cfg.Sink.Type {
	case SinkMySQL:
		sinkCfg := cfg.Sink.Config
		if sinkCfg.KeyField == "" {
			sinkCfg.KeyField = DefaultKeyField(req)
		}
		bench.SinkedRecords, err = mysql_batch.NewSinkAdapter(cfg.Sink.DB, sinkCfg).Import(ctx, report.Output)
	case SinkRedis:
		sinkCfg := cfg.Sink.RedisConfig
		if sinkCfg.KeyField == "" {
			sinkCfg.KeyField = DefaultKeyField(req)
		}
		bench.SinkedRecords, err = redis_batch.NewSinkAdapter(cfg.Sink.Redis, sinkCfg).Import(ctx, report.Output)
	default:
		return bench, finish(&bench, started, collectDur)
	}
	if err != nil {
		return bench, err
	}
	log.Infof("[Flow] %s sink stored %d records", cfg.Sink.Type, bench.SinkedRecords)
	if collectDur {
		bench.SinkDuration = time.Since(sSink)
	}
	return bench, finish(&bench, started, collectDur)
}

func finish(bench *FlowBenchmarkResult, started time.Time, collectDur bool) error {
	if collectDur {
		bench.TotalDuration = time.Since(started)
	}
	return nil
}

func (c FlowConfig) options() yelpdp.Options {
	return yelpdp.Options{
		WorkDir:     c.Job.WorkDir,
		LocalOutput: c.Job.OutputDir,
		Engine: worker.Config{
			Reducers:    c.Job.Reducers,
			Workers:     c.Job.Workers,
			InRAM:       c.Job.InRAM,
			MaxAttempts: c.Job.MaxAttempts,
			ShuffleAddr: c.Job.ShuffleAddr,
		},
	}
}
