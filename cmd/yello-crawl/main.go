// Command yello-crawl wires the storage, registry, scheduler and export
// packages into a small flag-driven CLI for local operation. There is no
// HTTP surface; the scheduler and export control-surface operations are
// reachable as subcommands, except export-job deletion, which has no
// subcommand (export.Pipeline.Delete is package API only).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joshfom/yello-crawl/internal/adapter"
	"github.com/joshfom/yello-crawl/internal/common"
	"github.com/joshfom/yello-crawl/internal/export"
	"github.com/joshfom/yello-crawl/internal/interfaces"
	"github.com/joshfom/yello-crawl/internal/models"
	"github.com/joshfom/yello-crawl/internal/registry"
	"github.com/joshfom/yello-crawl/internal/scheduler"
	"github.com/joshfom/yello-crawl/internal/storage/badger"
)

// configPaths collects repeated -config/-c flags, following the same
// multi-value flag.Value idiom as the teacher's cmd/quaero/main.go.
type configPaths []string

func (c *configPaths) String() string { return strings.Join(*c, ",") }
func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

func main() {
	var configFiles configPaths
	flag.Var(&configFiles, "config", "path to a TOML config file (repeatable)")
	flag.Var(&configFiles, "c", "shorthand for -config")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.BoolVar(showVersion, "v", false, "shorthand for -version")
	flag.Parse()

	if *showVersion {
		fmt.Println(common.GetFullVersion())
		return
	}

	if len(configFiles) == 0 {
		if _, err := os.Stat("yello-crawl.toml"); err == nil {
			configFiles = append(configFiles, "yello-crawl.toml")
		}
	}

	// Required order: load config, apply env overrides, init logger, print
	// banner, open storage, then wire the scheduler/export packages on top.
	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	common.ApplyEnvOverrides(config)

	logger := common.SetupLogger(config)
	defer common.Stop()

	common.PrintBanner(config, logger)

	store, err := badger.NewStore(logger, &config.Storage.Badger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open storage")
	}
	defer store.Close()

	reg := registry.New(store.Jobs(), logger)

	adapterFactory := func(canonicalDomain, baseURL string) (interfaces.Adapter, error) {
		if baseURL == "" {
			baseURL = "https://" + canonicalDomain
		}
		return adapter.New(canonicalDomain, baseURL, config.Adapter.RequestTimeout, config.Adapter.UserAgentRotation), nil
	}

	sched := scheduler.New(store, reg, adapterFactory, &config.Scheduler, logger)
	exporter := export.New(store, logger)

	ctx := context.Background()
	if n, err := sched.RecoverOnStartup(ctx); err != nil {
		logger.Warn().Err(err).Msg("startup recovery failed")
	} else if n > 0 {
		logger.Warn().Int("count", n).Msg("paused jobs left running by a prior process")
	}

	sched.StartBackgroundSweeps()
	defer sched.StopBackgroundSweeps()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		common.PrintShutdownBanner(logger)
		return
	}

	if err := dispatch(ctx, args, config, sched, exporter); err != nil {
		logger.Error().Err(err).Msg("command failed")
		fmt.Fprintln(os.Stderr, err)
		common.PrintShutdownBanner(logger)
		os.Exit(1)
	}

	common.PrintShutdownBanner(logger)
}

func printUsage() {
	fmt.Println(`usage: yello-crawl [-config FILE] <command> [args]

commands:
  create-job <name> <domain> [concurrent_requests] [request_delay]
  start <job-id>
  force-start <job-id>
  pause <job-id>
  resume <job-id>
  cancel <job-id>
  status <job-id>
  list
  pause-all
  resume-all
  resume-network-paused
  restart-zero-extraction
  status-summary
  update-settings <job-id> [concurrent_requests] [request_delay]
  seed <catalog.json> [--overwrite]
  export-create <endpoint-url> <auth-token>
  export-start <export-job-id>
  export-stop <export-job-id>
  export-status <export-job-id>
  export-logs <export-job-id>
  export-list [limit] [offset]
  export-test-connection <endpoint-url> <auth-token>`)
}

func dispatch(ctx context.Context, args []string, config *common.Config, sched *scheduler.Service, exporter *export.Pipeline) error {
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "create-job":
		if len(rest) < 2 {
			return fmt.Errorf("create-job requires <name> <domain>")
		}
		concurrent := common.DefaultConcurrentRequests
		delay := common.DefaultRequestDelay
		if len(rest) > 2 {
			concurrent, _ = strconv.Atoi(rest[2])
		}
		if len(rest) > 3 {
			delay, _ = strconv.ParseFloat(rest[3], 64)
		}
		job, err := sched.CreateJob(ctx, rest[0], rest[1], concurrent, delay)
		if err != nil {
			return err
		}
		return printJSON(job)

	case "start":
		return requireID(rest, func(id string) error { return sched.Start(ctx, id) })
	case "force-start":
		return requireID(rest, func(id string) error { return sched.ForceStart(ctx, id) })
	case "pause":
		return requireID(rest, func(id string) error { return sched.Pause(ctx, id) })
	case "resume":
		return requireID(rest, func(id string) error { return sched.Resume(ctx, id) })
	case "cancel":
		return requireID(rest, func(id string) error { return sched.Cancel(ctx, id) })

	case "status":
		if len(rest) < 1 {
			return fmt.Errorf("status requires <job-id>")
		}
		job, err := sched.Status(ctx, rest[0])
		if err != nil {
			return err
		}
		return printJSON(job)

	case "list":
		jobs, err := sched.ListJobs(ctx, interfaces.JobListOptions{})
		if err != nil {
			return err
		}
		return printJSON(jobs)

	case "pause-all":
		n, err := sched.PauseAll(ctx)
		return printCount(n, err)
	case "resume-all":
		n, err := sched.ResumeAll(ctx)
		return printCount(n, err)
	case "resume-network-paused":
		n, err := sched.ResumeNetworkPaused(ctx)
		return printCount(n, err)
	case "restart-zero-extraction":
		n, err := sched.RestartZeroExtraction(ctx)
		return printCount(n, err)

	case "status-summary":
		summary, err := sched.StatusSummary(ctx)
		if err != nil {
			return err
		}
		return printJSON(summary)

	case "update-settings":
		if len(rest) < 1 {
			return fmt.Errorf("update-settings requires <job-id> [concurrent_requests] [request_delay]")
		}
		var concurrent *int
		var delay *float64
		if len(rest) > 1 {
			v, err := strconv.Atoi(rest[1])
			if err != nil {
				return fmt.Errorf("invalid concurrent_requests %q: %w", rest[1], err)
			}
			concurrent = &v
		}
		if len(rest) > 2 {
			v, err := strconv.ParseFloat(rest[2], 64)
			if err != nil {
				return fmt.Errorf("invalid request_delay %q: %w", rest[2], err)
			}
			delay = &v
		}
		return sched.UpdateSettings(ctx, rest[0], concurrent, delay)

	case "seed":
		if len(rest) < 1 {
			return fmt.Errorf("seed requires <catalog.json>")
		}
		overwrite := len(rest) > 1 && rest[1] == "--overwrite"
		catalog, err := loadCatalog(rest[0])
		if err != nil {
			return err
		}
		result, err := sched.SeedFromCatalog(ctx, catalog, overwrite)
		if err != nil {
			return err
		}
		return printJSON(result)

	case "export-create":
		if len(rest) < 2 {
			return fmt.Errorf("export-create requires <endpoint-url> <auth-token>")
		}
		job, err := exporter.Create(ctx, models.ExportConfig{
			EndpointURL:    rest[0],
			AuthToken:      rest[1],
			RequestMethod:  models.RequestMethodPOST,
			BatchSize:      config.Export.DefaultBatchSize,
			RateLimitDelay: common.DefaultRequestDelay,
		}, false)
		if err != nil {
			return err
		}
		return printJSON(job)

	case "export-start":
		return requireID(rest, func(id string) error { return exporter.Start(ctx, id) })
	case "export-stop":
		return requireID(rest, func(id string) error { return exporter.Stop(ctx, id) })

	case "export-status":
		if len(rest) < 1 {
			return fmt.Errorf("export-status requires <export-job-id>")
		}
		job, err := exporter.Get(ctx, rest[0])
		if err != nil {
			return err
		}
		return printJSON(job)

	case "export-logs":
		if len(rest) < 1 {
			return fmt.Errorf("export-logs requires <export-job-id>")
		}
		logs, err := exporter.GetLogs(ctx, rest[0])
		if err != nil {
			return err
		}
		return printJSON(logs)

	case "export-list":
		limit, offset := 0, 0
		if len(rest) > 0 {
			limit, _ = strconv.Atoi(rest[0])
		}
		if len(rest) > 1 {
			offset, _ = strconv.Atoi(rest[1])
		}
		jobs, err := exporter.List(ctx, limit, offset)
		if err != nil {
			return err
		}
		return printJSON(jobs)

	case "export-test-connection":
		if len(rest) < 2 {
			return fmt.Errorf("export-test-connection requires <endpoint-url> <auth-token>")
		}
		return exporter.TestConnection(ctx, rest[0], rest[1])

	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func requireID(rest []string, fn func(string) error) error {
	if len(rest) < 1 {
		return fmt.Errorf("command requires <job-id>")
	}
	return fn(rest[0])
}

func printCount(n int, err error) error {
	if err != nil {
		return err
	}
	fmt.Printf("%d\n", n)
	return nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func loadCatalog(path string) (*models.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var catalog models.Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return &catalog, nil
}
