// Command vecstore is a thin CLI wrapping the VecStore library for manual
// exercising of a collection or a namespace tree: a cobra root with
// collection and namespace-admin subcommand groups covering upsert/query/
// hybrid-query/snapshot/compact/namespace-admin operations.
package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var (
	dirFlag    string
	dimFlag    int
	metricFlag string
	jsonOut    bool
)

var rootCmd = &cobra.Command{
	Use:   "vecstore",
	Short: "CLI for the VecStore embedded vector database",
	Long:  `A command-line interface for managing a VecStore collection or namespace tree on disk.`,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&dirFlag, "dir", "d", "./vecstore-data", "Collection or namespace root directory")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	rootCmd.AddCommand(
		initCmd,
		upsertCmd,
		getCmd,
		deleteCmd,
		softDeleteCmd,
		restoreCmd,
		indexTextCmd,
		queryCmd,
		hybridQueryCmd,
		estimateCmd,
		snapshotCmd,
		compactCmd,
		statsCmd,
		nsCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func printJSON(v interface{}) {
	fmt.Println(toJSON(v))
}
