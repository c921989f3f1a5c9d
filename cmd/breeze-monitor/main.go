package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/monitor/internal/audit"
	"github.com/breeze-rmm/monitor/internal/condoc"
	"github.com/breeze-rmm/monitor/internal/config"
	"github.com/breeze-rmm/monitor/internal/dispatch"
	"github.com/breeze-rmm/monitor/internal/engine"
	"github.com/breeze-rmm/monitor/internal/events"
	"github.com/breeze-rmm/monitor/internal/fields"
	"github.com/breeze-rmm/monitor/internal/health"
	"github.com/breeze-rmm/monitor/internal/logging"
	"github.com/breeze-rmm/monitor/internal/policy"
	"github.com/breeze-rmm/monitor/internal/registry"
	"github.com/breeze-rmm/monitor/internal/sampler"
	"github.com/breeze-rmm/monitor/internal/scriptrun"
	"github.com/breeze-rmm/monitor/internal/workerpool"
)

var (
	version = "0.1.0"
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "breeze-monitor",
	Short: "Breeze RMM Monitor",
	Long:  `Breeze Monitor - policy-driven endpoint monitoring engine for Windows, macOS, and Linux`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the monitoring engine",
	Run: func(cmd *cobra.Command, args []string) {
		runMonitor()
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [policy-file...]",
	Short: "Validate policy files without arming them",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		validatePolicies(args)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Breeze Monitor v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/breeze/monitor.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runMonitor() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if result := cfg.ValidateTiered(); result.HasFatals() {
		for _, err := range result.Fatals {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		}
		os.Exit(1)
	}

	logging.Init(cfg.LogFormat, cfg.LogLevel, os.Stderr)
	log := logging.L("main")

	log.Info("starting monitor", "version", version, "tickInterval", cfg.TickInterval())

	trail, err := audit.NewLogger(cfg.DataDir, cfg.AuditMaxSizeMB, cfg.AuditMaxBackups)
	if err != nil {
		log.Warn("audit log unavailable", logging.KeyError, err)
		trail = nil
	}
	trail.Log(audit.EventMonitorStart, "", map[string]any{"version": version})

	var reg *registry.Registry
	if cfg.RegistriesFile != "" {
		reg, err = registry.Load(cfg.RegistriesFile)
		if err != nil {
			log.Warn("registries unavailable, reference validation disabled", logging.KeyError, err)
		}
	}

	samplers := sampler.NewSet()
	system := sampler.NewSystem()
	samplers.Register(system, system.Kinds()...)
	services := sampler.NewServices()
	samplers.Register(services, services.Kinds()...)

	pool := workerpool.New(cfg.ScriptWorkers, cfg.ScriptQueueSize)
	runner := scriptrun.NewRunner()

	var sink events.Sink = events.Discard{}
	var shipper *events.Shipper
	if cfg.ServerURL != "" {
		shipper = events.NewShipper(&events.Config{
			ServerURL:  cfg.ServerURL,
			EndpointID: cfg.EndpointID,
			AuthToken:  cfg.AuthToken,
		})
		// Start blocks in the delivery loop until Stop.
		go shipper.Start()
		sink = shipper
	}

	var disp *dispatch.Dispatcher
	if reg != nil {
		disp = dispatch.New(nil, nil, dispatch.NewAutomations(reg, runner, trail))
	}

	store := fields.NewInMemory()
	checks := health.NewMonitor()
	eng := engine.New(
		engine.Config{TickInterval: cfg.TickInterval(), EndpointID: cfg.EndpointID},
		engine.Deps{
			Samplers:   samplers,
			Fields:     fields.Lookup(store),
			Dispatcher: disp,
			Sink:       sink,
			Scripts:    runner,
			Pool:       pool,
			Registry:   reg,
			Audit:      trail,
			Health:     checks,
		},
	)

	bindings, errs := loadPolicyDir(cfg.PolicyDir)
	for _, err := range errs {
		log.Warn("policy file rejected", logging.KeyError, err)
	}
	armed := 0
	for _, b := range bindings {
		if err := eng.Arm(b); err != nil {
			log.Warn("binding rejected", "name", b.Name, logging.KeyError, err)
			continue
		}
		armed++
	}
	log.Info("policies loaded", "armed", armed, "rejected", len(bindings)-armed+len(errs))

	ctx, cancel := context.WithCancel(context.Background())
	go eng.Run(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down", "health", checks.Overall())
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 30*time.Second)
	pool.Shutdown(shutdownCtx)
	done()

	if shipper != nil {
		shipper.Stop()
	}

	trail.Log(audit.EventMonitorStop, "", nil)
	trail.Close()
}

// loadPolicyDir parses every .policy file in dir. A broken file is reported
// and skipped; it never blocks the rest of the directory.
func loadPolicyDir(dir string) ([]*policy.Binding, []error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.policy"))
	if err != nil {
		return nil, []error{err}
	}

	var (
		bindings []*policy.Binding
		errs     []error
	)
	for _, path := range paths {
		b, err := loadPolicyFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		bindings = append(bindings, b)
	}
	return bindings, errs
}

func loadPolicyFile(path string) (*policy.Binding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := condoc.Parse(string(data))
	if err != nil {
		return nil, err
	}
	return policy.DecodeBinding(doc)
}

func validatePolicies(paths []string) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		cfg = config.Default()
	}

	var reg *registry.Registry
	if cfg.RegistriesFile != "" {
		reg, _ = registry.Load(cfg.RegistriesFile)
	}

	failed := 0
	for _, path := range paths {
		b, err := loadPolicyFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}

		var problems []error
		problems = append(problems, b.Validate()...)
		if reg != nil {
			problems = append(problems, reg.ValidateRefs(b)...)
		}
		if len(problems) > 0 {
			for _, p := range problems {
				fmt.Fprintf(os.Stderr, "%s: %v\n", path, p)
			}
			failed++
			continue
		}
		fmt.Printf("%s: OK (%s, %s)\n", path, b.Name, b.Condition.Kind)
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d policy files failed validation\n", failed, len(paths))
		os.Exit(1)
	}
}
