package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/collection"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/fusion"
)

func init() {
	for _, c := range []*cobra.Command{upsertCmd, getCmd, deleteCmd, softDeleteCmd, restoreCmd, indexTextCmd,
		queryCmd, hybridQueryCmd, estimateCmd, snapshotCmd, compactCmd, statsCmd, initCmd} {
		c.Flags().IntVar(&dimFlag, "dim", 0, "Vector dimension")
		c.Flags().StringVar(&metricFlag, "metric", "l2", "Distance metric (l2|cosine|inner_product|l1|hamming|jaccard)")
	}
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create (or open) a collection at --dir with the given dimension and metric",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCollection(dimFlag, metricFlag)
		if err != nil {
			return err
		}
		defer c.Close()
		fmt.Printf("collection initialized at %s (dim=%d, metric=%s)\n", dirFlag, c.Dimension(), metricFlag)
		return nil
	},
}

var upsertCmd = &cobra.Command{
	Use:   "upsert <id>",
	Short: "Insert or replace a record's vector and metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vectorStr, _ := cmd.Flags().GetString("vector")
		metadataStr, _ := cmd.Flags().GetString("metadata")
		ttl, _ := cmd.Flags().GetInt64("ttl")

		v, err := parseVector(vectorStr)
		if err != nil {
			return err
		}
		md, err := parseMetadata(metadataStr)
		if err != nil {
			return err
		}

		c, err := openCollection(dimFlag, metricFlag)
		if err != nil {
			return err
		}
		defer c.Close()

		if ttl > 0 {
			err = c.UpsertWithTTL(args[0], v, md, ttl)
		} else {
			err = c.Upsert(args[0], v, md)
		}
		if err != nil {
			return err
		}
		fmt.Printf("record %q upserted\n", args[0])
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch a live record by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCollection(dimFlag, metricFlag)
		if err != nil {
			return err
		}
		defer c.Close()

		rec, ok := c.Get(args[0])
		if !ok {
			return fmt.Errorf("id %q not found", args[0])
		}
		printJSON(rec)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Hard-delete a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCollection(dimFlag, metricFlag)
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("record %q deleted\n", args[0])
		return nil
	},
}

var softDeleteCmd = &cobra.Command{
	Use:   "soft-delete <id>",
	Short: "Tombstone a record without removing it from the graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCollection(dimFlag, metricFlag)
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.SoftDelete(args[0]); err != nil {
			return err
		}
		fmt.Printf("record %q soft-deleted\n", args[0])
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Clear a record's soft-delete tombstone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCollection(dimFlag, metricFlag)
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.Restore(args[0]); err != nil {
			return err
		}
		fmt.Printf("record %q restored\n", args[0])
		return nil
	},
}

var indexTextCmd = &cobra.Command{
	Use:   "index-text <id> <field> <text>",
	Short: "Tokenize and index text for an existing record's hybrid-search side",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCollection(dimFlag, metricFlag)
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.IndexText(args[0], map[string]string{args[1]: args[2]}); err != nil {
			return err
		}
		fmt.Printf("text indexed for record %q\n", args[0])
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a k-NN search against the HNSW graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		vectorStr, _ := cmd.Flags().GetString("vector")
		k, _ := cmd.Flags().GetInt("k")
		ef, _ := cmd.Flags().GetInt("ef")
		filterStr, _ := cmd.Flags().GetString("filter")

		v, err := parseVector(vectorStr)
		if err != nil {
			return err
		}
		expr, err := parseFilter(filterStr)
		if err != nil {
			return err
		}

		c, err := openCollection(dimFlag, metricFlag)
		if err != nil {
			return err
		}
		defer c.Close()

		results, err := c.Query(context.Background(), collection.QueryParams{Vector: v, K: k, Ef: ef, Filter: expr})
		if err != nil {
			return err
		}
		printResults(results)
		return nil
	},
}

var hybridQueryCmd = &cobra.Command{
	Use:   "hybrid-query",
	Short: "Run a fused dense+BM25F search",
	RunE: func(cmd *cobra.Command, args []string) error {
		vectorStr, _ := cmd.Flags().GetString("vector")
		text, _ := cmd.Flags().GetString("text")
		k, _ := cmd.Flags().GetInt("k")
		ef, _ := cmd.Flags().GetInt("ef")
		alpha, _ := cmd.Flags().GetFloat64("alpha")
		policyStr, _ := cmd.Flags().GetString("policy")
		filterStr, _ := cmd.Flags().GetString("filter")
		explain, _ := cmd.Flags().GetBool("explain")

		v, err := parseVector(vectorStr)
		if err != nil {
			return err
		}
		expr, err := parseFilter(filterStr)
		if err != nil {
			return err
		}
		policy, err := parsePolicy(policyStr)
		if err != nil {
			return err
		}

		c, err := openCollection(dimFlag, metricFlag)
		if err != nil {
			return err
		}
		defer c.Close()

		fcfg := fusion.DefaultConfig()
		fcfg.Policy = policy
		fcfg.Alpha = alpha

		results, err := c.HybridQuery(context.Background(), collection.HybridQueryParams{
			Vector: v, Text: text, K: k, Ef: ef, Filter: expr, FusionCfg: fcfg, Explain: explain,
		})
		if err != nil {
			return err
		}
		printResults(results)
		return nil
	},
}

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Report the query planner's cost/overfetch estimate without running the query",
	RunE: func(cmd *cobra.Command, args []string) error {
		vectorStr, _ := cmd.Flags().GetString("vector")
		k, _ := cmd.Flags().GetInt("k")
		filterStr, _ := cmd.Flags().GetString("filter")

		v, err := parseVector(vectorStr)
		if err != nil {
			return err
		}
		expr, err := parseFilter(filterStr)
		if err != nil {
			return err
		}

		c, err := openCollection(dimFlag, metricFlag)
		if err != nil {
			return err
		}
		defer c.Close()

		est := c.EstimateQuery(collection.QueryParams{Vector: v, K: k, Filter: expr})
		printJSON(est)
		return nil
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage collection snapshots",
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Write a full-state snapshot and truncate the WAL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCollection(dimFlag, metricFlag)
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.CreateSnapshot(args[0]); err != nil {
			return err
		}
		fmt.Printf("snapshot %q created\n", args[0])
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshot names",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCollection(dimFlag, metricFlag)
		if err != nil {
			return err
		}
		defer c.Close()
		names, err := c.ListSnapshots()
		if err != nil {
			return err
		}
		printJSON(names)
		return nil
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore <name>",
	Short: "Replace the collection's state with a named snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCollection(dimFlag, metricFlag)
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.RestoreSnapshot(args[0]); err != nil {
			return err
		}
		fmt.Printf("snapshot %q restored\n", args[0])
		return nil
	},
}

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Rebuild the record store, graph, and text index from live records only",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		c, err := openCollection(dimFlag, metricFlag)
		if err != nil {
			return err
		}
		defer c.Close()

		if force {
			if err := c.Compact(); err != nil {
				return err
			}
			fmt.Println("compaction complete")
			return nil
		}
		ran, err := c.MaybeCompact()
		if err != nil {
			return err
		}
		if ran {
			fmt.Println("auto-compaction triggered")
		} else {
			fmt.Println("auto-compaction thresholds not met")
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display collection statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCollection(dimFlag, metricFlag)
		if err != nil {
			return err
		}
		defer c.Close()
		printJSON(c.Stats())
		return nil
	},
}

func parsePolicy(name string) (fusion.Policy, error) {
	switch name {
	case "", "weighted_sum":
		return fusion.WeightedSum, nil
	case "rrf":
		return fusion.ReciprocalRankFusion, nil
	case "dbsf":
		return fusion.DBSF, nil
	case "relative_score":
		return fusion.RelativeScore, nil
	case "max":
		return fusion.Max, nil
	case "min":
		return fusion.Min, nil
	case "harmonic_mean":
		return fusion.HarmonicMean, nil
	case "geometric_mean":
		return fusion.GeometricMean, nil
	default:
		return 0, fmt.Errorf("unknown fusion policy %q", name)
	}
}

func printResults(results []collection.Result) {
	if jsonOut {
		printJSON(results)
		return
	}
	fmt.Printf("%d results:\n", len(results))
	for i, r := range results {
		fmt.Printf("%d. %s (score: %.6f)\n", i+1, r.ID, r.Score)
	}
}

func init() {
	upsertCmd.Flags().String("vector", "", "Dense vector values (comma-separated)")
	upsertCmd.Flags().String("metadata", "", "Metadata as a JSON object")
	upsertCmd.Flags().Int64("ttl", 0, "Expire this many seconds from now (0 disables)")

	queryCmd.Flags().String("vector", "", "Query vector values (comma-separated)")
	queryCmd.Flags().Int("k", 10, "Number of results")
	queryCmd.Flags().Int("ef", 0, "ef_search (0 uses the collection default)")
	queryCmd.Flags().String("filter", "", "Metadata filter (key=value,key2=value2, AND-ed Eq comparisons)")

	hybridQueryCmd.Flags().String("vector", "", "Dense query vector values (comma-separated)")
	hybridQueryCmd.Flags().String("text", "", "Query text for the BM25F side")
	hybridQueryCmd.Flags().Int("k", 10, "Number of results")
	hybridQueryCmd.Flags().Int("ef", 0, "ef_search (0 uses the collection default)")
	hybridQueryCmd.Flags().Float64("alpha", 0.5, "Dense weight in [0,1]")
	hybridQueryCmd.Flags().String("policy", "weighted_sum", "Fusion policy (weighted_sum|rrf|dbsf|relative_score|max|min|harmonic_mean|geometric_mean)")
	hybridQueryCmd.Flags().String("filter", "", "Metadata filter (key=value,key2=value2, AND-ed Eq comparisons)")
	hybridQueryCmd.Flags().Bool("explain", false, "Include a per-result score explanation")

	estimateCmd.Flags().String("vector", "", "Query vector values (comma-separated)")
	estimateCmd.Flags().Int("k", 10, "Number of results")
	estimateCmd.Flags().String("filter", "", "Metadata filter (key=value,key2=value2, AND-ed Eq comparisons)")

	compactCmd.Flags().Bool("force", false, "Compact unconditionally instead of checking auto-compaction thresholds")

	snapshotCmd.AddCommand(snapshotCreateCmd, snapshotListCmd, snapshotRestoreCmd)
}
