package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/objkv/cmd/obj"
	"github.com/ValentinKolb/objkv/cmd/util"
	"github.com/ValentinKolb/objkv/lib/store"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "objkv",
		Short: "embedded object store",
		Long: fmt.Sprintf(`objkv (v%s)

An embedded, transactional object store with versioned schemas,
secondary indexes and paged index scans, written in Go.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of objkv",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("objkv v%s\n", Version)
		},
	}
	schemaCmd = &cobra.Command{
		Use:   "schema",
		Short: "Print the object stores and indexes every database is opened with",
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.PrintJSON(store.DefaultSchema())
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(obj.ObjectCommands)
	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(schemaCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
