package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nkoretz/drover/internal/config"
	"github.com/nkoretz/drover/internal/output"
	"github.com/nkoretz/drover/internal/runner"
)

// ErrThresholdsFailed marks a run that completed but missed its pass
// criteria. The summary has already been printed when it surfaces.
var ErrThresholdsFailed = errors.New("one or more thresholds failed")

var runCmd = &cobra.Command{
	Use:   "run [scenario]",
	Short: "Run a scenario against the target",
	Long: `Run a scenario from the catalog against the target service.

Configuration resolves in three layers: the scenario's defaults, then
the --config file, then flags. Later layers win.

Examples:
  drover run smoke --url http://localhost:8080
  drover run load --vus 20 --duration 5m
  drover run stress --stages "1m:10,2m:10,1m:0" --threshold "errors:rate<0.05"
  drover run smoke --start-target --archive drover.db`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScenario,
}

func init() {
	f := runCmd.Flags()
	f.StringP("config", "c", "", "config file (.yaml, .json, or .jsonc)")
	f.String("url", "", "base URL of the target service")
	f.Int("vus", 0, "hold this many VUs for --duration, replacing the schedule")
	f.StringP("duration", "d", "", "hold duration used with --vus (e.g. 5m)")
	f.String("stages", "", "schedule as 'duration:target,...', replacing the scenario's")
	f.Int("start-vus", 0, "ramp origin of the first stage")
	f.String("think-time", "", "fixed pause between iterations (e.g. 500ms)")
	f.StringArray("threshold", nil, "extra threshold as 'metric:expression' (repeatable)")
	f.StringP("output", "o", "", "summary format: text or json")
	f.String("archive", "", "append the run to this SQLite archive")
	f.Bool("insecure", false, "skip TLS certificate verification")
	f.DurationP("timeout", "t", 0, "per-request timeout")
	f.Duration("graceful-stop", 0, "drain budget after the schedule ends")
	f.Bool("start-target", false, "start the embedded stand-in service if the target is down")
	f.String("health-path", "", "path probed before the run")
	f.Int("probe-attempts", 0, "health probe attempts")
	f.Duration("probe-delay", 0, "delay between health probes")
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg := config.Default()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		fileCfg, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg.Merge(fileCfg)
	}

	flagCfg, err := flagConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Merge(flagCfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	name := cfg.Scenario
	if len(args) > 0 {
		name = args[0]
	}

	catalog := runner.DefaultCatalog()
	if _, err := catalog.Resolve(name); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := runner.New(catalog)
	defer r.Close()

	if err := r.PrepareEnvironment(ctx, cfg); err != nil {
		return err
	}

	summary, err := r.Execute(ctx, name, cfg)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	printer := output.NewPrinter(w, output.SchemeFor(w, cfg.NoColor), cfg.Quiet)
	if cfg.Output == config.OutputJSON {
		if err := printer.PrintJSON(summary); err != nil {
			return err
		}
	} else {
		printer.PrintSummary(summary)
	}

	if !summary.Passed {
		return ErrThresholdsFailed
	}
	return nil
}

// flagConfig collects the run flags into a config layer. Zero values
// mean "not set" so the merge below the flags can win.
func flagConfig(cmd *cobra.Command) (*config.RunConfig, error) {
	f := cmd.Flags()
	cfg := &config.RunConfig{}

	cfg.BaseURL, _ = f.GetString("url")
	cfg.VUs, _ = f.GetInt("vus")
	cfg.StartVUs, _ = f.GetInt("start-vus")

	if s, _ := f.GetString("duration"); s != "" {
		d, err := config.ParseDurationString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid --duration: %w", err)
		}
		cfg.Duration = config.Duration(d)
	}

	if s, _ := f.GetString("stages"); s != "" {
		stages, err := config.ParseStagesString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid --stages: %w", err)
		}
		cfg.Stages = stages
	}

	if s, _ := f.GetString("think-time"); s != "" {
		d, err := config.ParseDurationString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid --think-time: %w", err)
		}
		cfg.ThinkTime = config.Duration(d)
	}

	exprs, _ := f.GetStringArray("threshold")
	if len(exprs) > 0 {
		cfg.Thresholds = make(map[string][]string, len(exprs))
		for _, raw := range exprs {
			metric, expr, err := splitThreshold(raw)
			if err != nil {
				return nil, err
			}
			cfg.Thresholds[metric] = append(cfg.Thresholds[metric], expr)
		}
	}

	cfg.Output, _ = f.GetString("output")
	cfg.Archive, _ = f.GetString("archive")
	cfg.Insecure, _ = f.GetBool("insecure")
	cfg.StartTarget, _ = f.GetBool("start-target")
	cfg.HealthPath, _ = f.GetString("health-path")
	cfg.ProbeAttempts, _ = f.GetInt("probe-attempts")

	if d, _ := f.GetDuration("timeout"); d != 0 {
		cfg.HTTPTimeout = config.Duration(d)
	}
	if d, _ := f.GetDuration("graceful-stop"); d != 0 {
		cfg.GracefulStop = config.Duration(d)
	}
	if d, _ := f.GetDuration("probe-delay"); d != 0 {
		cfg.ProbeDelay = config.Duration(d)
	}

	cfg.Quiet, _ = f.GetBool("quiet")
	cfg.NoColor, _ = f.GetBool("no-color")
	cfg.Verbose, _ = f.GetBool("verbose")

	return cfg, nil
}

// splitThreshold parses a --threshold value of the form
// "metric:expression", splitting on the first colon.
func splitThreshold(raw string) (metric, expr string, err error) {
	metric, expr, ok := strings.Cut(raw, ":")
	metric = strings.TrimSpace(metric)
	expr = strings.TrimSpace(expr)
	if !ok || metric == "" || expr == "" {
		return "", "", fmt.Errorf("invalid threshold %q: expected metric:expression", raw)
	}
	return metric, expr, nil
}
