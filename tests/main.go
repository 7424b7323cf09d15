// Command tests drives a workload against a live Redis-like server
// behind toxiproxy, optionally injecting a failure scenario, and prints
// periodic operation counters - the harness used to chase reconnect and
// replay bugs that only show up under concurrent load and a flaky link.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-rconn/rconn"
	"github.com/go-rconn/rconn/netreactor"
	"github.com/go-rconn/rconn/resp"
	"github.com/go-rconn/rconn/tests/scenarios"
	"github.com/go-rconn/rconn/tests/testutils"
	"github.com/go-rconn/rconn/tests/workload"
)

func main() {
	scenarioName := flag.String("scenario", "", "Specific scenario to run (default: workload only)")
	concurrency := flag.Int("concurrency", 50, "Number of concurrent workers")
	metricsInterval := flag.Duration("metrics-interval", 2*time.Second, "How often to print stats")
	listScenarios := flag.Bool("list", false, "List available scenarios and exit")
	workloadName := flag.String("workload", "mixed", "Workload pattern to use")
	autoReconnect := flag.Bool("auto-reconnect", true, "Run the handler with AUTO_RECONNECT semantics")

	flag.Parse()

	if *listScenarios {
		printScenarios()
		return
	}

	fmt.Println("========================================")
	fmt.Println("  rconn Reliability Test Runner")
	fmt.Println("========================================")
	fmt.Printf("Concurrency: %d workers\n", *concurrency)
	fmt.Printf("Workload: %s\n", *workloadName)
	if *scenarioName != "" {
		fmt.Printf("Scenario: %s\n", *scenarioName)
	} else {
		fmt.Println("Scenario: None (workload only)")
	}
	fmt.Println("========================================")

	fmt.Println("[Setup] Initializing toxiproxy...")
	toxiConfig := testutils.DefaultToxiproxyConfig()
	_, proxies, err := testutils.SetupToxiproxy(toxiConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up toxiproxy: %v\n", err)
		fmt.Fprintln(os.Stderr, "Make sure toxiproxy and a Redis-compatible server are running.")
		os.Exit(1)
	}
	defer testutils.CleanupToxiproxy(proxies)

	addr := toxiConfig.Proxies[0].Listen
	// Toxiproxy listens on the configured bind address; dial it via
	// loopback since this process and toxiproxy share a host in the
	// common case.
	dialAddr := loopbackOf(addr)

	ctx := context.Background()
	fmt.Println("[Setup] Waiting for server health...")
	if err := testutils.WaitForHealthy(ctx, dialAddr); err != nil {
		fmt.Fprintf(os.Stderr, "Error waiting for server health: %v\n", err)
		os.Exit(1)
	}

	h := rconn.NewHandler(rconn.Options{AutoReconnect: *autoReconnect}, resp.New())
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if _, err := netreactor.Dial(dialCtx, "tcp", dialAddr, h); err != nil {
		cancel()
		fmt.Fprintf(os.Stderr, "Error dialing %s: %v\n", dialAddr, err)
		os.Exit(1)
	}
	cancel()
	defer func() { <-h.Close() }()

	wl, err := workload.Get(*workloadName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading workload: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("[Setup] Workload: %s - %s\n", wl.Name(), wl.Description())

	runner := workload.NewRunner(h, wl, *concurrency)

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n[Main] Received interrupt, shutting down...")
		runCancel()
	}()

	fmt.Printf("\n[Main] Starting workload with %d workers\n", *concurrency)
	go func() {
		if err := runner.Run(runCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Workload error: %v\n", err)
		}
	}()

	if *scenarioName != "" {
		scenario, err := scenarios.Get(*scenarioName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading scenario: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("[Main] Letting workload stabilize before %s...\n", scenario.Name())
		time.Sleep(2 * time.Second)
		go func() {
			if err := scenario.Run(runCtx, proxies); err != nil && runCtx.Err() == nil {
				fmt.Fprintf(os.Stderr, "Scenario error: %v\n", err)
			}
		}()
	}

	ticker := time.NewTicker(*metricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-runCtx.Done():
			fmt.Println("[Main] Final stats:", runner.Stats())
			return
		case <-ticker.C:
			stats := h.Stats()
			fmt.Printf("[Stats] %s | dispatchQueue=%d holdingBuffer=%d state=%s\n",
				runner.Stats(), stats.DispatchQueueLen, stats.HoldingBufferLen, h.State())
		}
	}
}

func loopbackOf(listenAddr string) string {
	// listenAddr is e.g. "0.0.0.0:21211"; dial it over loopback.
	for i := len(listenAddr) - 1; i >= 0; i-- {
		if listenAddr[i] == ':' {
			return "127.0.0.1" + listenAddr[i:]
		}
	}
	return listenAddr
}

func printScenarios() {
	fmt.Println("Available scenarios:")
	for _, name := range scenarios.List() {
		s, _ := scenarios.Get(name)
		fmt.Printf("  %-20s %s\n", s.Name(), s.Description())
	}
}
