package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/emptyOVO/yelpdp-go"
	"github.com/emptyOVO/yelpdp-go/batch"
	"github.com/emptyOVO/yelpdp-go/pipeline"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
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

func getenvBool(name string, d bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return d
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return d
	}
	return b
}

func must(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	must(newRootCmd().Execute())
}

func newRootCmd() *cobra.Command {
	var opts yelpdp.Options
	var logLevel string

	rootCmd := &cobra.Command{
		Use:   "yelpdp",
		Short: "yelpdp runs MapReduce jobs over the Yelp JSON dataset",
		Long: `yelpdp runs MapReduce jobs over the Yelp JSON dataset on a single machine:
merging two files by key, summarizing businesses by state, extracting the
reviews of a business subset, and searching each user's home state.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := log.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(level)
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.WorkDir, "work", getenvDefault("YELPDP_WORK_DIR", "yelpdp-work"), "Working area directory")
	flags.StringVarP(&opts.LocalOutput, "out", "o", getenvDefault("YELPDP_LOCAL_OUTPUT", "."), "Local directory the output folder is copied to")
	flags.IntVarP(&opts.Engine.Reducers, "reducers", "r", getenvInt("YELPDP_REDUCERS", 4), "Number of Reducers")
	flags.IntVarP(&opts.Engine.Workers, "workers", "w", getenvInt("YELPDP_WORKERS", 4), "Number of Workers")
	flags.BoolVarP(&opts.Engine.InRAM, "inRAM", "m", getenvBool("YELPDP_IN_RAM", false), "Whether write the intermediate file in RAM")
	flags.IntVar(&opts.Engine.MaxAttempts, "attempts", getenvInt("YELPDP_ATTEMPTS", 2), "Attempts per task before the job fails")
	flags.StringVar(&opts.Engine.ShuffleAddr, "shuffle", os.Getenv("YELPDP_SHUFFLE_ADDR"), "Serve intermediate files over gRPC on this address")
	flags.StringVar(&logLevel, "log-level", getenvDefault("YELPDP_LOG_LEVEL", "info"), "Log level")

	var mergeKey string
	mergeCmd := &cobra.Command{
		Use:   "merge <left.json> <right.json>",
		Short: "Merge two JSON files by a shared key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd.Context(), opts, yelpdp.JobRequest{Name: yelpdp.JobMerge, Inputs: args, MergeKey: mergeKey})
		},
	}
	mergeCmd.Flags().StringVarP(&mergeKey, "key", "k", "business_id", "Merge key")

	rootCmd.AddCommand(
		mergeCmd,
		jobCmd(&opts, "summary <business.json>", "Summarize businesses by state", yelpdp.JobSummary, 1),
		jobCmd(&opts, "extract <business.json> <review.json>", "Extract the reviews of the listed businesses", yelpdp.JobExtract, 2),
		jobCmd(&opts, "homestate <business.json> <review.json> <user.json>", "Search each user's home state", yelpdp.JobHomeState, 3),
		runCmd(),
	)
	return rootCmd
}

func jobCmd(opts *yelpdp.Options, use, short, job string, n int) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(n),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd.Context(), *opts, yelpdp.JobRequest{Name: job, Inputs: args})
		},
	}
}

func runCmd() *cobra.Command {
	var configPath string
	var checkOnly, benchmark bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a job and sink from a JSON flow config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := batch.LoadFlowConfig(configPath)
			if err != nil {
				return err
			}
			sinkEnvDefaults(&cfg.Sink)
			if err := batch.ValidateFlowConfig(cfg); err != nil {
				return err
			}
			if checkOnly {
				fmt.Println("config check pass")
				return nil
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			fmt.Println(yelpdp.Banner(cfg.Job.Name))
			if !benchmark {
				if err := batch.RunFlow(ctx, cfg); err != nil {
					return err
				}
				fmt.Println("flow done")
				return nil
			}
			result, err := batch.RunFlowBenchmark(ctx, cfg)
			if err != nil {
				return err
			}
			fmt.Printf("job=%s sink=%s total=%s records=%d\n", result.JobDuration, result.SinkDuration, result.TotalDuration, result.SinkedRecords)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Flow config file path (JSON)")
	cmd.MarkFlagRequired("config")
	cmd.Flags().BoolVar(&checkOnly, "check", false, "Validate flow config schema only")
	cmd.Flags().BoolVar(&benchmark, "benchmark", false, "Report job and sink durations")
	return cmd
}

// sinkEnvDefaults fills connection settings the config leaves empty.
func sinkEnvDefaults(sink *batch.FlowSinkConfig) {
	db := &sink.DB
	if db.Host == "" {
		db.Host = getenvDefault("MYSQL_HOST", "127.0.0.1")
	}
	if db.Port == 0 {
		db.Port = getenvInt("MYSQL_PORT", 3306)
	}
	if db.User == "" {
		db.User = os.Getenv("MYSQL_USER")
	}
	if db.Password == "" {
		db.Password = os.Getenv("MYSQL_PASSWORD")
	}
	if db.Database == "" {
		db.Database = os.Getenv("MYSQL_DB")
	}

	r := &sink.Redis
	if r.Host == "" {
		r.Host = getenvDefault("REDIS_HOST", "127.0.0.1")
	}
	if r.Port == 0 {
		r.Port = getenvInt("REDIS_PORT", 6379)
	}
	if r.Password == "" {
		r.Password = os.Getenv("REDIS_PASSWORD")
	}
	if r.DB == 0 {
		r.DB = getenvInt("REDIS_DB", 0)
	}
}

func runJob(parent context.Context, opts yelpdp.Options, req yelpdp.JobRequest) error {
	ctx, stop := signalContext(parent)
	defer stop()

	fmt.Println(yelpdp.Banner(req.Name))
	opts.Progress = func(s pipeline.State, stages int) {
		if s.Status == pipeline.Done && s.Stage < stages {
			fmt.Println("First job is finished! Starting Second Job...")
		}
	}
	report, err := yelpdp.Run(ctx, opts, req)
	if err != nil {
		return err
	}
	for _, res := range report.Stages {
		fmt.Printf("%s: %d records in, %d groups, %d records out (%s)\n",
			res.Job, res.Counters.MapInputRecords, res.Counters.ReduceGroups, res.Counters.OutputRecords, res.Duration)
	}
	fmt.Printf("%d output files copied to %s (%s)\n", len(report.Output), opts.LocalOutput, report.Duration)
	return nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
