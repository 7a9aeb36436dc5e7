package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/emptyOVO/yelpdp-go/batch"
)

func getenvDefault(name, d string) string {
	v := os.Getenv(name)
	if v == "" {
		return d
	}
	return v
}

func getenvInt(name string, d int) int {
	v := os.Getenv(name)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func main() {
	cfg := batch.FlowConfig{
		Version: batch.FlowVersionV1,
		Job: batch.FlowJobConfig{
			Name: "homestate",
			Inputs: []string{
				getenvDefault("BUSINESS_JSON", "us_business.json"),
				getenvDefault("REVIEW_JSON", "us_review.json"),
				getenvDefault("USER_JSON", "user.json"),
			},
			Reducers: getenvInt("YELPDP_REDUCERS", 4),
			Workers:  getenvInt("YELPDP_WORKERS", 8),
		},
		Sink: batch.FlowSinkConfig{
			Type: batch.SinkMySQL,
			DB: batch.DBConfig{
				Host:     getenvDefault("MYSQL_HOST", "localhost"),
				Port:     getenvInt("MYSQL_PORT", 3306),
				User:     getenvDefault("MYSQL_USER", "root"),
				Password: getenvDefault("MYSQL_PASSWORD", "123456"),
				Database: getenvDefault("MYSQL_DB", "yelp"),
			},
			Config: batch.SinkConfig{
				Table:   getenvDefault("TARGET_TABLE", "users_home_state"),
				Replace: true,
			},
		},
	}

	res, err := batch.RunFlowBenchmark(context.Background(), cfg)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("job=%s sink=%s total=%s records=%d", res.JobDuration, res.SinkDuration, res.TotalDuration, res.SinkedRecords)
}
