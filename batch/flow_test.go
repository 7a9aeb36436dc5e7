package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/emptyOVO/yelpdp-go"
)

func validConfig() FlowConfig {
	return FlowConfig{
		Version: FlowVersionV1,
		Job:     FlowJobConfig{Name: "homestate", Inputs: []string{"b.json", "r.json", "u.json"}},
	}
}

func TestValidateFlowConfig(t *testing.T) {
	if err := ValidateFlowConfig(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := map[string]func(*FlowConfig){
		"version":     func(c *FlowConfig) { c.Version = "v2" },
		"job name":    func(c *FlowConfig) { c.Job.Name = "wordcount" },
		"inputs":      func(c *FlowConfig) { c.Job.Inputs = c.Job.Inputs[:1] },
		"merge key":   func(c *FlowConfig) { c.Job.Name = "merge"; c.Job.Inputs = []string{"a", "b"} },
		"attempts":    func(c *FlowConfig) { c.Job.MaxAttempts = -1 },
		"sink type":   func(c *FlowConfig) { c.Sink.Type = "kafka" },
		"mysql db":    func(c *FlowConfig) { c.Sink.Type = "mysql"; c.Sink.Config.Table = "users" },
		"mysql table": func(c *FlowConfig) { c.Sink.Type = "mysql"; c.Sink.DB = DBConfig{User: "root", Database: "yelp"} },
	}
	for name, mutate := range cases {
		cfg := validConfig()
		mutate(&cfg)
		if err := ValidateFlowConfig(cfg); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}

	cfg := validConfig()
	cfg.Sink.Type = " Redis "
	if err := ValidateFlowConfig(cfg); err != nil {
		t.Fatalf("redis sink with default prefix should validate: %v", err)
	}
}

func TestLoadFlowConfig(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "flow.json")
	if err := os.WriteFile(good, []byte(`{
  "version": "v1",
  "job": {"name": "merge", "inputs": ["a.json", "b.json"], "merge_key": "business_id", "reducers": 2},
  "sink": {"type": "redis", "redis": {"port": 6380}, "redis_config": {"key_prefix": "biz:"}}
}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFlowConfig(good)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Job.MergeKey != "business_id" || cfg.Sink.Redis.Port != 6380 || cfg.Sink.RedisConfig.KeyPrefix != "biz:" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"version":"v1","transform":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFlowConfig(bad); err == nil || !strings.Contains(err.Error(), "unknown field") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestDefaultKeyField(t *testing.T) {
	cases := map[string]yelpdp.JobRequest{
		"business_id": {Name: "merge", MergeKey: "business_id"},
		"state":       {Name: "summary"},
		"review_id":   {Name: "extract"},
		"user_id":     {Name: "homestate"},
	}
	for want, req := range cases {
		if got := DefaultKeyField(req); got != want {
			t.Fatalf("%s: expected %s, got %s", req.Name, want, got)
		}
	}
}

func withRunner(t *testing.T, r Runner) {
	t.Helper()
	prev := DefaultRunner()
	SetDefaultRunner(r)
	t.Cleanup(func() { SetDefaultRunner(prev) })
}

func TestRunFlowPassesJobSettings(t *testing.T) {
	var gotOpts yelpdp.Options
	var gotReq yelpdp.JobRequest
	withRunner(t, RunnerFunc(func(ctx context.Context, opts yelpdp.Options, req yelpdp.JobRequest) (*yelpdp.Report, error) {
		gotOpts, gotReq = opts, req
		return &yelpdp.Report{Job: req.Name}, nil
	}))

	cfg := validConfig()
	cfg.Job.WorkDir = "work"
	cfg.Job.InRAM = true
	res, err := RunFlowBenchmark(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if gotReq.Name != "homestate" || len(gotReq.Inputs) != 3 {
		t.Fatalf("unexpected request %+v", gotReq)
	}
	if gotOpts.WorkDir != "work" || !gotOpts.Engine.InRAM || gotOpts.Engine.Reducers != 8 || gotOpts.Engine.Workers != 16 {
		t.Fatalf("unexpected options %+v", gotOpts)
	}
	if res.Report == nil || res.TotalDuration <= 0 {
		t.Fatalf("expected report and durations, got %+v", res)
	}
}

func TestRunFlowStopsOnJobError(t *testing.T) {
	boom := errors.New("boom")
	withRunner(t, RunnerFunc(func(ctx context.Context, opts yelpdp.Options, req yelpdp.JobRequest) (*yelpdp.Report, error) {
		return nil, boom
	}))
	cfg := validConfig()
	cfg.Sink.Type = SinkRedis
	cfg.Sink.Redis = RedisConnConfig{Port: 1}
	if err := RunFlow(context.Background(), cfg); !errors.Is(err, boom) {
		t.Fatalf("expected job error before sink, got %v", err)
	}
}

func TestRunFlowSummary(t *testing.T) {
	dir := t.TempDir()
	business := filepath.Join(dir, "business.json")
	if err := os.WriteFile(business, []byte(`{"business_id":"b1","state":"CA","categories":"Food"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := FlowConfig{
		Version: FlowVersionV1,
		Job: FlowJobConfig{
			Name:      "business-summary",
			Inputs:    []string{business},
			WorkDir:   filepath.Join(dir, "work"),
			OutputDir: filepath.Join(dir, "local"),
			Reducers:  2,
			Workers:   2,
		},
	}
	res, err := RunFlowBenchmark(context.Background(), cfg)
	if err != nil {
		t.Fatalf("flow failed: %v", err)
	}
	var lines []string
	for _, f := range res.Report.Output {
		b, err := os.ReadFile(f)
		if err != nil {
			t.Fatal(err)
		}
		if s := strings.TrimSpace(string(b)); s != "" {
			lines = append(lines, s)
		}
	}
	if len(lines) != 1 || lines[0] != `{"state":"CA","count":1,"categories":{"Food":1}}` {
		t.Fatalf("unexpected output %v", lines)
	}
}
