package batch

import (
	"github.com/emptyOVO/yelpdp-go/batch/mysql_batch"
	"github.com/emptyOVO/yelpdp-go/batch/redis_batch"
)

// Unified sink config aliases exposed by batch package.
type DBConfig = mysql_batch.DBConfig
type SinkConfig = mysql_batch.SinkConfig
type RedisConnConfig = redis_batch.ConnConfig
type RedisSinkConfig = redis_batch.SinkConfig

const (
	SinkNone  = "none"
	SinkMySQL = "mysql"
	SinkRedis = "redis"
)

// FlowConfig describes a job -> sink flow.
type FlowConfig struct {
	Version string         `json:"version"`
	Job     FlowJobConfig  `json:"job"`
	Sink    FlowSinkConfig `json:"sink"`
}

// FlowJobConfig names the job, its inputs and engine settings.
type FlowJobConfig struct {
	Name        string   `json:"name"`
	Inputs      []string `json:"inputs"`
	MergeKey    string   `json:"merge_key"`
	WorkDir     string   `json:"work_dir"`
	OutputDir   string   `json:"output_dir"`
	Reducers    int      `json:"reducers"`
	Workers     int      `json:"workers"`
	InRAM       bool     `json:"in_ram"`
	MaxAttempts int      `json:"max_attempts"`
	ShuffleAddr string   `json:"shuffle_addr"`
}

type FlowSinkConfig struct {
	Type        string          `json:"type"`
	DB          DBConfig        `json:"db"`
	Redis       RedisConnConfig `json:"redis"`
	Config      SinkConfig      `json:"config"`
	RedisConfig RedisSinkConfig `json:"redis_config"`
}

func (c *FlowConfig) withDefaults() {
	if c.Sink.Type == "" {
		c.Sink.Type = SinkNone
	}
	c.Sink.Type = normalizeName(c.Sink.Type)
	if c.Job.Reducers <= 0 {
		c.Job.Reducers = 8
	}
	if c.Job.Workers <= 0 {
		c.Job.Workers = 16
	}
	c.Sink.Config.WithDefaults()
	c.Sink.RedisConfig.WithDefaults()
}
