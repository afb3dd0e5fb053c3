// Command metricops runs the workflow engine as a CLI or an HTTP/MCP server.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hylla/metricops/internal/adapters/server/common"
	"github.com/hylla/metricops/internal/adapters/storage/memlog"
	"github.com/hylla/metricops/internal/adapters/storage/sqlite"
	"github.com/hylla/metricops/internal/app"
	"github.com/hylla/metricops/internal/config"
	"github.com/hylla/metricops/internal/platform"
)

// version is overridden at build time with -ldflags.
var version = "dev"

const appName = platform.AppName

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run executes one CLI invocation through fang.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root, rt := newRootCommand(stdout, stderr, os.Getenv, time.Now)
	defer rt.Close()
	root.SetArgs(args)
	return fang.Execute(ctx, root,
		fang.WithVersion(version),
		fang.WithErrorHandler(func(w io.Writer, _ fang.Styles, err error) {
			_, _ = fmt.Fprintln(w, "error:", describeError(err))
		}),
	)
}

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	dbPath     string
	actor      string
	role       string
	output     string
	devMode    bool
}

// cliRuntime resolves configuration once per invocation and opens the store lazily.
type cliRuntime struct {
	opts   globalOptions
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
	now    func() time.Time

	paths      platform.Paths
	configPath string
	cfg        config.Config
	format     outputFormat
	logger     *runtimeLogger

	service    common.WorkflowService
	ready      func(context.Context) error
	closeStore func() error
}

func newRootCommand(stdout, stderr io.Writer, getenv func(string) string, now func() time.Time) (*cobra.Command, *cliRuntime) {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if now == nil {
		now = time.Now
	}
	rt := &cliRuntime{stdout: stdout, stderr: stderr, getenv: getenv, now: now}

	root := &cobra.Command{
		Use:           appName,
		Short:         "Workflow state engine for analytics and ML delivery boards",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.load()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&rt.opts.configPath, "config", "", "path to config TOML (env METRICOPS_CONFIG)")
	flags.StringVar(&rt.opts.dbPath, "db", "", "path to sqlite database (env METRICOPS_DB_PATH)")
	flags.StringVar(&rt.opts.actor, "actor", "", "acting user id (defaults to identity.default_actor)")
	flags.StringVar(&rt.opts.role, "role", "", "acting role: admin, lead, contributor, viewer")
	flags.StringVarP(&rt.opts.output, "output", "o", string(outputText), "output format: text, json, yaml")
	flags.BoolVar(&rt.opts.devMode, "dev", platform.DevModeFromEnv(getenv), "use dev mode paths (metricops-dev) and dev file logging")

	root.AddCommand(
		newServeCommand(rt),
		newPathsCommand(rt),
		newBoardsCommand(rt),
		newWorkCommand(rt),
		newDepCommand(rt),
		newApprovalCommand(rt),
		newEventsCommand(rt),
		newSummaryCommand(rt),
	)
	return root, rt
}

// load resolves paths, config, output format, and the runtime logger.
func (rt *cliRuntime) load() error {
	format, err := parseOutputFormat(rt.opts.output)
	if err != nil {
		return err
	}
	rt.format = format

	paths, err := platform.DefaultPathsWithOptions(platform.Options{AppName: appName, DevMode: rt.opts.devMode})
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}
	rt.paths = paths.WithEnvOverrides(rt.getenv)

	rt.configPath = strings.TrimSpace(rt.opts.configPath)
	if rt.configPath == "" {
		rt.configPath = rt.paths.ConfigPath
	}
	cfg, err := config.Load(rt.configPath, config.Default(rt.paths.DBPath))
	if err != nil {
		return fmt.Errorf("load config %q: %w", rt.configPath, err)
	}
	cfg.ApplyEnv(rt.getenv)
	if dbPath := strings.TrimSpace(rt.opts.dbPath); dbPath != "" {
		cfg.Database.Path = dbPath
	}
	rt.cfg = cfg

	workDir, err := os.Getwd()
	if err != nil {
		workDir = "."
	}
	logger, err := newRuntimeLogger(rt.stderr, rt.opts.devMode, cfg, workDir, rt.now)
	if err != nil {
		return fmt.Errorf("configure runtime logger: %w", err)
	}
	rt.logger = logger
	logger.Debug("configuration loaded", "config_path", rt.configPath, "backend", cfg.Database.Backend, "db_path", cfg.Database.Path, "dev_mode", rt.opts.devMode)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}
	return nil
}

// workflow opens the configured record log on first use.
func (rt *cliRuntime) workflow() (common.WorkflowService, error) {
	if rt.service != nil {
		return rt.service, nil
	}

	var recordLog app.RecordLog
	switch rt.cfg.Database.Backend {
	case config.BackendMemory:
		rt.logger.Debug("using in-memory record log")
		recordLog = memlog.New()
	default:
		rt.logger.Debug("opening sqlite record log", "db_path", rt.cfg.Database.Path)
		repo, err := sqlite.Open(rt.cfg.Database.Path)
		if err != nil {
			rt.logger.Error("sqlite open failed", "db_path", rt.cfg.Database.Path, "err", err)
			return nil, fmt.Errorf("open sqlite record log: %w", err)
		}
		recordLog = repo
		rt.ready = repo.Ping
		rt.closeStore = repo.Close
	}

	svc := app.NewService(recordLog, uuid.NewString, rt.now, app.ServiceConfig{})
	rt.service = common.NewAppServiceAdapter(svc)
	return rt.service, nil
}

// actor resolves the acting identity from flags, then config defaults.
func (rt *cliRuntime) actor() common.ActorTuple {
	id := strings.TrimSpace(rt.opts.actor)
	if id == "" {
		id = strings.TrimSpace(rt.cfg.Identity.DefaultActor)
	}
	role := strings.TrimSpace(rt.opts.role)
	if role == "" {
		role = strings.TrimSpace(rt.cfg.Identity.DefaultRole)
	}
	return common.ActorTuple{ID: id, Role: role}
}

// write renders payload in the selected output format.
func (rt *cliRuntime) write(payload any, text func(io.Writer) error) error {
	return writeResult(rt.stdout, rt.format, payload, text)
}

// Close releases the store and the dev-file log sink.
func (rt *cliRuntime) Close() {
	if rt == nil {
		return
	}
	if rt.closeStore != nil {
		if err := rt.closeStore(); err != nil {
			rt.logger.Warn("sqlite close failed", "db_path", rt.cfg.Database.Path, "err", err)
		}
		rt.closeStore = nil
	}
	if err := rt.logger.Close(); err != nil {
		_, _ = fmt.Fprintf(rt.stderr, "warning: close runtime log sink: %v\n", err)
	}
}
