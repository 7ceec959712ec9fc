// Command poolbench exercises the pooling runtime against the in-memory
// host and reports throughput and per-pool statistics as JSON.
package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/prefabpool/pkg/config"
	"github.com/ajitpratap0/prefabpool/pkg/host"
	"github.com/ajitpratap0/prefabpool/pkg/json"
	"github.com/ajitpratap0/prefabpool/pkg/logger"
	"github.com/ajitpratap0/prefabpool/pkg/pool"
)

var version = "0.1.0"

// lifecycleCounter counts the notifications its instance receives.
type lifecycleCounter struct {
	acquires int
	returns  int
}

func (c *lifecycleCounter) OnPoolAcquire() { c.acquires++ }
func (c *lifecycleCounter) OnPoolReturn()  { c.returns++ }

// trailBuffer simulates a trail-effect history that must not survive reuse.
type trailBuffer struct {
	points []host.Vec3
}

func (t *trailBuffer) ClearTransient() { t.points = t.points[:0] }

// report is the JSON document printed after a run.
type report struct {
	Prototypes   int           `json:"prototypes"`
	Cycles       int           `json:"cycles"`
	Burst        int           `json:"burst"`
	Acquisitions int           `json:"acquisitions"`
	Duration     time.Duration `json:"duration_ns"`
	PerSecond    float64       `json:"acquisitions_per_second"`
	Pools        []poolReport  `json:"pools"`
}

type poolReport struct {
	Name    string `json:"name"`
	Active  int    `json:"active"`
	Reserve int    `json:"reserve"`
	Total   int    `json:"total"`
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("POOLBENCH")
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "poolbench",
		Short: "Benchmark harness for the prefab pooling runtime",
		Long: `poolbench drives acquire/return workloads through a pool collection
backed by an in-memory host, measuring recycling throughput and reporting
per-pool instance counts.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("poolbench v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run an acquire/return workload",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkload(v)
		},
	}
	runCmd.Flags().String("config", "", "Path to a YAML pool configuration file")
	runCmd.Flags().Int("prototypes", 4, "Number of distinct prototypes")
	runCmd.Flags().Int("cycles", 1000, "Number of acquire/return cycles")
	runCmd.Flags().Int("burst", 64, "Instances acquired per cycle")
	runCmd.Flags().Int("prewarm", 0, "Reserve capacity pre-warmed per pool")
	runCmd.Flags().Bool("metrics", true, "Record Prometheus pool metrics during the run")
	runCmd.Flags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	if err := v.BindPFlags(runCmd.Flags()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to bind flags: %v\n", err)
		os.Exit(1)
	}
	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runWorkload(v *viper.Viper) error {
	cfg := config.NewConfig()
	if path := v.GetString("config"); path != "" {
		if err := config.Load(path, cfg); err != nil {
			return err
		}
		cfg.ApplyDefaults()
	}
	cfg.Observability.LogLevel = v.GetString("log-level")
	cfg.Observability.EnableMetrics = v.GetBool("metrics")
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: "console",
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	prototypes := v.GetInt("prototypes")
	cycles := v.GetInt("cycles")
	burst := v.GetInt("burst")
	prewarm := v.GetInt("prewarm")
	if prototypes < 1 || cycles < 1 || burst < 1 {
		return fmt.Errorf("prototypes, cycles and burst must all be >= 1")
	}

	h := host.NewMemoryHost()
	pools, err := pool.NewCollection(h, cfg, logger.Get())
	if err != nil {
		return err
	}
	defer pools.Dispose()

	protos := make([]host.Node, prototypes)
	for i := range protos {
		proto := h.NewPrototype(fmt.Sprintf("projectile-%d", i),
			func() host.Component { return &lifecycleCounter{} },
		)
		h.AddChild(proto, "trail",
			func() host.Component { return &trailBuffer{} },
		)
		protos[i] = proto

		if prewarm > 0 {
			if err := pools.PreWarm(proto, prewarm); err != nil {
				return err
			}
		}
	}

	logger.Info("workload starting",
		zap.Int("prototypes", prototypes),
		zap.Int("cycles", cycles),
		zap.Int("burst", burst))

	checkout := make([]host.Node, 0, burst)
	start := time.Now()
	for cycle := 0; cycle < cycles; cycle++ {
		checkout = checkout[:0]
		for i := 0; i < burst; i++ {
			node, err := pools.Acquire(protos[i%prototypes],
				pool.At(host.Vec3{X: float64(i)}, host.IdentityQuat()),
			)
			if err != nil {
				return err
			}
			checkout = append(checkout, node)
		}
		for _, node := range checkout {
			if err := pools.Return(node); err != nil {
				return err
			}
		}
	}
	elapsed := time.Since(start)

	total := cycles * burst
	rep := report{
		Prototypes:   prototypes,
		Cycles:       cycles,
		Burst:        burst,
		Acquisitions: total,
		Duration:     elapsed,
		PerSecond:    float64(total) / elapsed.Seconds(),
	}
	for _, proto := range protos {
		p, ok := pools.Pool(proto)
		if !ok {
			continue
		}
		rep.Pools = append(rep.Pools, poolReport{
			Name:    p.Name(),
			Active:  p.ActiveCount(),
			Reserve: p.ReserveCount(),
			Total:   p.TotalCount(),
		})
	}

	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
