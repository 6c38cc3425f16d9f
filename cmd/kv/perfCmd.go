package kv

import (
	"context"
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/stacKV/cmd/util"
	"github.com/ValentinKolb/stacKV/lib/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for store chains",
		RunE:    withChain(runPerf),
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfOpsPerThread     = 1000
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

// perfTest is one benchmark: prepare runs once before the measurement, op is timed
type perfTest struct {
	name    string
	prepare func(ctx context.Context, keys []string)
	op      func(ctx context.Context, key string, i int) error
}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines to use for the benchmark"))
	key = "ops"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("Operations per goroutine and benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfOpsPerThread = max(viper.GetInt("ops"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(ctx context.Context, _ []string) error {
	fmt.Println("Performance testing tool for store chains")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(kvConf.String())
	fmt.Printf("Threads: %d, Operations per thread: %d\n", perfNumThreads, perfOpsPerThread)
	fmt.Println()

	fmt.Println("starting tests...")

	s := kvChain.Store
	value := []byte("test")
	largeValue := make([]byte, perfLargeValueSizeKB*1024)
	fill := func(ctx context.Context, keys []string) {
		for _, k := range keys {
			if _, _, err := s.Set(ctx, k, value); err != nil {
				log.Warningf("(prepare) - error setting key: %v", err)
			}
		}
	}

	tests := []perfTest{
		{name: "set", op: func(ctx context.Context, key string, _ int) error {
			_, _, err := s.Set(ctx, key, value)
			return err
		}},
		{name: "set-large", op: func(ctx context.Context, key string, _ int) error {
			_, _, err := s.Set(ctx, key, largeValue)
			return err
		}},
		{name: "get", prepare: fill, op: func(ctx context.Context, key string, _ int) error {
			_, _, err := s.Get(ctx, key)
			return err
		}},
		{name: "has", prepare: fill, op: func(ctx context.Context, key string, _ int) error {
			_, err := s.ContainsKey(ctx, key)
			return err
		}},
		{name: "has-not", op: func(ctx context.Context, key string, _ int) error {
			_, err := s.ContainsKey(ctx, key)
			return err
		}},
		{name: "delete", prepare: fill, op: func(ctx context.Context, key string, _ int) error {
			_, err := s.Remove(ctx, key)
			return err
		}},
		{name: "mixed", prepare: fill, op: func(ctx context.Context, key string, i int) error {
			var err error
			switch i % 4 {
			case 0:
				_, _, err = s.Set(ctx, key, value)
			case 1:
				_, _, err = s.Get(ctx, key)
			case 2:
				_, err = s.Remove(ctx, key)
			case 3:
				_, err = s.ContainsKey(ctx, key)
			}
			return err
		}},
	}

	registry := gometrics.NewRegistry()
	for _, test := range tests {
		if shouldSkip(test.name) {
			fmt.Printf("%-12sskipped\n", test.name)
			continue
		}
		timer := gometrics.GetOrRegisterTimer(test.name, registry)
		errs := gometrics.GetOrRegisterCounter(test.name+".errors", registry)
		runTest(ctx, test, timer, errs)
		printResult(test.name, timer.Snapshot(), errs.Count())
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, tests, registry, kvConf); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// runTest runs test.op perfOpsPerThread times on perfNumThreads goroutines and removes
// the test keys afterwards
func runTest(ctx context.Context, test perfTest, timer gometrics.Timer, errs gometrics.Counter) {
	keys := getKeys(test.name)
	if test.prepare != nil {
		test.prepare(ctx, keys)
	}
	defer func() {
		for _, k := range keys {
			if _, err := kvChain.Store.Remove(ctx, k); err != nil {
				log.Warningf("(%s) - error deleting key: %v", test.name, err)
			}
		}
	}()

	var wg sync.WaitGroup
	for t := 0; t < perfNumThreads; t++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for i := 0; i < perfOpsPerThread; i++ {
				if ctx.Err() != nil {
					return
				}
				start := time.Now()
				err := test.op(ctx, keys[(offset+i)%len(keys)], i)
				timer.UpdateSince(start)
				if err != nil {
					errs.Inc(1)
					log.Debugf("(%s) - error: %v", test.name, err)
				}
			}
		}(t)
	}
	wg.Wait()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// getKeys creates the test keys of a benchmark
func getKeys(prefix string) []string {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}
	return keys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, t gometrics.Timer, errors int64) {
	ps := t.Percentiles([]float64{0.5, 0.99})
	fmt.Printf("%-12s%8d ops  mean %-12s p50 %-12s p99 %-12s %.0f ops/sec  errors %d\n",
		test,
		t.Count(),
		time.Duration(t.Mean()),
		time.Duration(ps[0]),
		time.Duration(ps[1]),
		opsPerSec(t),
		errors,
	)
}

// opsPerSec derives the throughput of all goroutines from the mean latency
func opsPerSec(t gometrics.Timer) float64 {
	if t.Mean() <= 0 {
		return 0
	}
	return float64(perfNumThreads) / (t.Mean() / 1e9)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, tests []perfTest, registry gometrics.Registry, config *common.ChainConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "Ops", "MeanNs", "P50Ns", "P99Ns", "MaxNs", "OpsPerSec", "Errors", "Skipped",
		"Layers", "Codec", "Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for _, test := range tests {
		row := []string{test.name, "0", "0", "0", "0", "0", "0", "0", "true"}
		if timer, ok := registry.Get(test.name).(gometrics.Timer); ok {
			t := timer.Snapshot()
			ps := t.Percentiles([]float64{0.5, 0.99})
			var errs int64
			if c, ok := registry.Get(test.name + ".errors").(gometrics.Counter); ok {
				errs = c.Count()
			}
			row = []string{
				test.name,
				strconv.FormatInt(t.Count(), 10),
				fmt.Sprintf("%.0f", t.Mean()),
				fmt.Sprintf("%.0f", ps[0]),
				fmt.Sprintf("%.0f", ps[1]),
				strconv.FormatInt(t.Max(), 10),
				fmt.Sprintf("%.0f", opsPerSec(t)),
				strconv.FormatInt(errs, 10),
				"false",
			}
		}
		row = append(row,
			strings.Join(config.Layers, ";"),
			viper.GetString("codec"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		)

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test.name, err)
		}
	}

	return nil
}
