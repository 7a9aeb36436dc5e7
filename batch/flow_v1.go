package batch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/emptyOVO/yelpdp-go"
)

const FlowVersionV1 = "v1"

// LoadFlowConfig reads a JSON flow config. Unknown fields are rejected.
func LoadFlowConfig(path string) (FlowConfig, error) {
	var cfg FlowConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse flow config %s: %w", path, err)
	}
	return cfg, nil
}

// ValidateFlowConfig validates v1 flow schema and required fields.
func ValidateFlowConfig(cfg FlowConfig) error {
	cfg.withDefaults()

	if strings.TrimSpace(cfg.Version) != FlowVersionV1 {
		return fmt.Errorf("unsupported version: %q (expected %q)", cfg.Version, FlowVersionV1)
	}
	if err := yelpdp.ValidateJobRequest(cfg.jobRequest()); err != nil {
		return fmt.Errorf("job: %w", err)
	}
	if cfg.Job.MaxAttempts < 0 {
		return fmt.Errorf("job.max_attempts must be >= 0")
	}

	switch cfg.Sink.Type {
	case SinkNone:
	case SinkMySQL:
		if cfg.Sink.DB.User == "" || cfg.Sink.DB.Database == "" {
			return fmt.Errorf("sink.db.user and sink.db.database are required for mysql sink")
		}
		if strings.TrimSpace(cfg.Sink.Config.Table) == "" {
			return fmt.Errorf("sink.config.table is required for mysql sink")
		}
	case SinkRedis:
		if strings.TrimSpace(cfg.Sink.RedisConfig.KeyPrefix) == "" {
			return fmt.Errorf("sink.redis_config.key_prefix is required for redis sink")
		}
	default:
		return fmt.Errorf("unsupported sink.type: %s", cfg.Sink.Type)
	}
	return nil
}

func (c FlowConfig) jobRequest() yelpdp.JobRequest {
	return yelpdp.JobRequest{Name: c.Job.Name, Inputs: c.Job.Inputs, MergeKey: c.Job.MergeKey}
}

// DefaultKeyField is the record field a sink keys rows by for a job.
func DefaultKeyField(req yelpdp.JobRequest) string {
	switch yelpdp.NormalizeJobName(req.Name) {
	case yelpdp.JobMerge:
		return req.MergeKey
	case yelpdp.JobSummary:
		return "state"
	case yelpdp.JobExtract:
		return "review_id"
	case yelpdp.JobHomeState:
		return "user_id"
	}
	return ""
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
