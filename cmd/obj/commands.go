package obj

import (
	"fmt"
	"os"
	"strconv"

	"github.com/ValentinKolb/objkv/cmd/util"
	"github.com/ValentinKolb/objkv/lib/store"
	"github.com/ValentinKolb/objkv/lib/store/lstore"
	"github.com/spf13/cobra"
)

var (
	insertCmd = &cobra.Command{
		Use:   "insert [store] [record]",
		Short: "Inserts a record, fails if the uuid exists",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := util.ParseRecord(args[1])
			if err != nil {
				return err
			}
			ctx, cancel := util.Context(conf)
			defer cancel()
			if err := objStore.Insert(ctx, args[0], record); err != nil {
				return err
			}
			fmt.Println("insert successfully")
			return nil
		},
	}
	upsertCmd = &cobra.Command{
		Use:   "upsert [store] [record]",
		Short: "Inserts or replaces a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := util.ParseRecord(args[1])
			if err != nil {
				return err
			}
			ctx, cancel := util.Context(conf)
			defer cancel()
			if err := objStore.Upsert(ctx, args[0], record); err != nil {
				return err
			}
			fmt.Println("upsert successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [store] [key]",
		Short: "Reads the record for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := util.Context(conf)
			defer cancel()
			record, ok, err := objStore.GetByKey(ctx, args[0], util.ParseValue(args[1]))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("key=%s, found=false\n", args[1])
				return nil
			}
			return util.PrintJSON(record)
		},
	}
	scanCmd = &cobra.Command{
		Use:   "scan [store]",
		Short: "Reads every record of a store in key order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := util.Context(conf)
			defer cancel()
			res := store.NewAsyncStore(objStore).FullScan(ctx, args[0]).Await(ctx)
			return printBulk(res.Value, res.Err)
		},
	}
	findCmd = &cobra.Command{
		Use:   "find [store] [index] [value]",
		Short: "Reads the first record with the index value",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := util.Context(conf)
			defer cancel()
			record, ok, err := objStore.GetByIndex(ctx, args[0], args[1], util.ParseValue(args[2]))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("%s=%s, found=false\n", args[1], args[2])
				return nil
			}
			return util.PrintJSON(record)
		},
	}
	findAllCmd = &cobra.Command{
		Use:   "find-all [store] [index] [value]",
		Short: "Reads every record with the index value",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := util.Context(conf)
			defer cancel()
			return printBulk(objStore.IndexedScan(ctx, args[0], args[1], util.ParseValue(args[2])))
		},
	}
	pageCmd = &cobra.Command{
		Use:   "page [store] [index] [value] [page] [size]",
		Short: "Reads one page of the records with the index value (pages start at 1)",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := strconv.Atoi(args[3])
			if err != nil {
				return fmt.Errorf("page must be a number: %w", err)
			}
			size, err := strconv.Atoi(args[4])
			if err != nil {
				return fmt.Errorf("size must be a number: %w", err)
			}
			ctx, cancel := util.Context(conf)
			defer cancel()
			return printBulk(objStore.IndexedScanPage(ctx, args[0], args[1], util.ParseValue(args[2]), page, size))
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [store] [key]",
		Short: "Deletes the record for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := util.Context(conf)
			defer cancel()
			if err := objStore.DeleteByKey(ctx, args[0], util.ParseValue(args[1])); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	delIndexCmd = &cobra.Command{
		Use:   "del-index [store] [index] [value]",
		Short: "Deletes every record with the index value",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := util.Context(conf)
			defer cancel()
			res, err := objStore.DeleteByIndex(ctx, args[0], args[1], util.ParseValue(args[2]))
			fmt.Printf("visited=%d, deleted=%d, failed=%d\n", res.Visited, res.Processed, res.Failed)
			return err
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints size, features and per-store statistics of the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := objStore.GetDBInfo()
			if err != nil {
				return err
			}
			return util.PrintJSON(info)
		},
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Prints the operation metrics of this process in the Prometheus format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lstore.WritePrometheus(os.Stdout)
			return nil
		},
	}
)

// printBulk prints the records and counts of a bulk result. Partial
// failures still print the records that could be read.
func printBulk(res store.BulkResult, err error) error {
	if err != nil && store.CodeOf(err) != store.RetCPartialFailure {
		return err
	}
	if perr := util.PrintJSON(res.Records); perr != nil {
		return perr
	}
	fmt.Printf("visited=%d, processed=%d, failed=%d\n", res.Visited, res.Processed, res.Failed)
	return err
}
