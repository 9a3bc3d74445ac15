package obj

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/objkv/cmd/util"
	"github.com/ValentinKolb/objkv/lib/common"
	"github.com/ValentinKolb/objkv/lib/db"
	"github.com/ValentinKolb/objkv/lib/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the store operations",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix  = "__test"
	perfNumThreads = 10
	perfKeySpread  = 100
	perfPageSize   = 10
	perfTextSizeKB = 1
	perfSkip       = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. insert,page)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different records to use for the tests"))
	key = "page-size"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("The page size of the page test"))
	key = "text-size"
	perfTestCmd.Flags().Int(key, 1, util.WrapString("How large the contentText of the test records should be (in KB)"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfPageSize = max(viper.GetInt("page-size"), 1)
	perfTextSizeKB = viper.GetInt("text-size")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func run(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for objkv stores")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(conf.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	ctx := context.Background()
	text := strings.Repeat("x", perfTextSizeKB*1024)
	results := make(map[string]testing.BenchmarkResult)

	bench := func(name string, prepare func(getKey func(int) string, iter func(func(string))), op func(i int, getKey func(int) string) error) {
		result := testing.Benchmark(func(b *testing.B) {
			if shouldSkip(name) {
				return
			}

			getKey, iter := getKeys(name)
			if prepare != nil {
				prepare(getKey, iter)
			}

			// cleanup
			b.Cleanup(func() {
				iter(func(k string) {
					if err := objStore.DeleteByKey(ctx, store.StoreUsersMD, k); err != nil {
						log.Errorf("(%s) - error deleting key: %v", name, err)
					}
				})
			})

			b.SetParallelism(perfNumThreads)
			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				counter := 0
				for pb.Next() {
					if err := op(counter, getKey); err != nil {
						log.Errorf("(%s) - %v", name, err)
					}
					counter++
				}
			})
		})
		results[name] = result
		printResult(name, result)
	}

	fill := func(_ func(int) string, iter func(func(string))) {
		iter(func(k string) {
			if err := objStore.Upsert(ctx, store.StoreUsersMD, perfRecord(k, text)); err != nil {
				log.Errorf("error preparing key %s: %v", k, err)
			}
		})
	}

	bench("insert", nil, func(i int, getKey func(int) string) error {
		err := objStore.Insert(ctx, store.StoreUsersMD, perfRecord(getKey(i), text))
		if store.IsDuplicateKey(err) {
			return nil
		}
		return err
	})

	bench("upsert", nil, func(i int, getKey func(int) string) error {
		return objStore.Upsert(ctx, store.StoreUsersMD, perfRecord(getKey(i), text))
	})

	bench("get", fill, func(i int, getKey func(int) string) error {
		_, _, err := objStore.GetByKey(ctx, store.StoreUsersMD, getKey(i))
		return err
	})

	bench("find", fill, func(i int, getKey func(int) string) error {
		_, _, err := objStore.GetByIndex(ctx, store.StoreUsersMD, store.IndexUUID, getKey(i))
		return err
	})

	bench("page", fill, func(i int, _ func(int) string) error {
		pages := max(perfKeySpread/perfPageSize, 1)
		_, err := objStore.IndexedScanPage(ctx, store.StoreUsersMD, store.IndexContentText, text, i%pages+1, perfPageSize)
		return err
	})

	bench("mixed", fill, func(i int, getKey func(int) string) error {
		switch i % 4 {
		case 0:
			return objStore.Upsert(ctx, store.StoreUsersMD, perfRecord(getKey(i), text))
		case 1:
			_, _, err := objStore.GetByIndex(ctx, store.StoreUsersMD, store.IndexUUID, getKey(i))
			return err
		default:
			_, _, err := objStore.GetByKey(ctx, store.StoreUsersMD, getKey(i))
			return err
		}
	})

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, conf); err != nil {
			return err
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func perfRecord(key, text string) db.Record {
	return db.Record{"uuid": key, "contentText": text}
}

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.Config) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Engine", "Codec", "Threads", "Keys", "PageSize", "TextSizeKB",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		skipped := "true"

		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			string(config.Engine),
			config.Codec,
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfKeySpread),
			strconv.Itoa(perfPageSize),
			strconv.Itoa(perfTextSizeKB),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
