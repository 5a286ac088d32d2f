// Package e2e drives a real browser against the storefront. The tests only
// run with FE_E2E=1 set, since they need a browser and network access.
package e2e

import (
	"flag"
	"fmt"
	"os"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/kidandcat/feauto/pkg/config"
	"github.com/kidandcat/feauto/pkg/harness"
	"github.com/kidandcat/feauto/pkg/logger"
)

var (
	browserFlag = flag.String("browser", "", "browser to run (chrome or firefox)")
	envFlag     = flag.String("env", harness.DefaultEnv, "environment key under ENVIRONMENTS")
	configFlag  = flag.String("config", "", "config file path")
)

var (
	manager *harness.Manager
	log     *logrus.Logger
)

func TestMain(m *testing.M) {
	flag.Parse()
	if os.Getenv("FE_E2E") != "1" {
		fmt.Println("skipping e2e tests: set FE_E2E=1 to run them")
		os.Exit(0)
	}
	os.Exit(run(m))
}

func run(m *testing.M) int {
	cfg, err := config.Resolve(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		return 1
	}

	registry := logger.NewRegistry()
	defer registry.Close()
	level := logger.ParseLevel(cfg.Get(config.DefaultSection, "log_level", "INFO"))
	log, err = registry.Get(logger.DefaultName, level, true, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	manager, err = harness.New(cfg, harness.Options{Browser: *browserFlag, Env: *envFlag}, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolving settings: %v\n", err)
		return 1
	}

	code := m.Run()
	stats := manager.Stats()
	if stats.Launched != stats.Terminated {
		fmt.Fprintf(os.Stderr, "leaked sessions: launched %d, terminated %d\n", stats.Launched, stats.Terminated)
		return 1
	}
	return code
}
