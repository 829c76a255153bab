package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/collection"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/logging"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/namespace"
)

// nsCmd groups the namespace-admin operations spec §6 lists: Create/List/
// Get/UpdateQuotas/UpdateStatus/Delete/GetStats. --dir is the namespace
// root, distinct from a bare collection's own --dir usage elsewhere.
var nsCmd = &cobra.Command{
	Use:   "ns",
	Short: "Namespace (multi-tenant) administration",
}

func openSupervisor() (*namespace.Supervisor, error) {
	return namespace.Open(dirFlag, logging.Nop())
}

var nsCreateCmd = &cobra.Command{
	Use:   "create <id>",
	Short: "Create a new namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dim, _ := cmd.Flags().GetInt("dim")
		metric, _ := cmd.Flags().GetString("metric")
		maxRPS, _ := cmd.Flags().GetFloat64("max-rps")
		maxVectors, _ := cmd.Flags().GetInt64("max-vectors")
		maxStorageBytes, _ := cmd.Flags().GetInt64("max-storage-bytes")
		maxBatchSize, _ := cmd.Flags().GetInt("max-batch-size")
		maxResultsPerQuery, _ := cmd.Flags().GetInt("max-results-per-query")
		maxConcurrentQueries, _ := cmd.Flags().GetInt("max-concurrent-queries")

		m, err := parseMetric(metric)
		if err != nil {
			return err
		}
		s, err := openSupervisor()
		if err != nil {
			return err
		}
		cfg := collection.DefaultConfig(dim, m)
		ns, err := s.CreateNamespace(args[0], cfg, namespace.Quota{
			MaxRPS:               maxRPS,
			MaxVectors:           maxVectors,
			MaxStorageBytes:      maxStorageBytes,
			MaxDimension:         dim,
			MaxBatchSize:         maxBatchSize,
			MaxResultsPerQuery:   maxResultsPerQuery,
			MaxConcurrentQueries: maxConcurrentQueries,
		})
		if err != nil {
			return err
		}
		fmt.Printf("namespace %q created (instance %s, status %s)\n", ns.ID(), ns.InstanceID(), ns.Status())
		return nil
	},
}

var nsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known namespace ids",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSupervisor()
		if err != nil {
			return err
		}
		printJSON(s.ListNamespaces())
		return nil
	},
}

var nsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a namespace's status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSupervisor()
		if err != nil {
			return err
		}
		ns, err := s.GetNamespace(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("id=%s instance=%s status=%s\n", ns.ID(), ns.InstanceID(), ns.Status())
		return nil
	},
}

var nsStatusCmd = &cobra.Command{
	Use:   "set-status <id> <pending|active|suspended|read_only|pending_deletion>",
	Short: "Transition a namespace's lifecycle status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := parseStatus(args[1])
		if err != nil {
			return err
		}
		s, err := openSupervisor()
		if err != nil {
			return err
		}
		if err := s.SetStatus(args[0], status); err != nil {
			return err
		}
		fmt.Printf("namespace %q set to %s\n", args[0], status)
		return nil
	},
}

var nsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Mark a namespace for deletion and remove its directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSupervisor()
		if err != nil {
			return err
		}
		if err := s.DeleteNamespace(args[0]); err != nil {
			return err
		}
		fmt.Printf("namespace %q deleted\n", args[0])
		return nil
	},
}

var nsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate statistics summed across active namespaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSupervisor()
		if err != nil {
			return err
		}
		stats, err := s.AggregateStats()
		if err != nil {
			return err
		}
		printJSON(stats)
		return nil
	},
}

func parseStatus(s string) (namespace.Status, error) {
	switch s {
	case "pending":
		return namespace.Pending, nil
	case "active":
		return namespace.Active, nil
	case "suspended":
		return namespace.Suspended, nil
	case "read_only":
		return namespace.ReadOnly, nil
	case "pending_deletion":
		return namespace.PendingDeletion, nil
	default:
		return 0, fmt.Errorf("unknown status %q", s)
	}
}

func init() {
	nsCreateCmd.Flags().Int("dim", 0, "Vector dimension")
	nsCreateCmd.Flags().String("metric", "l2", "Distance metric")
	nsCreateCmd.Flags().Float64("max-rps", 0, "Rate-limit quota (0 = unlimited)")
	nsCreateCmd.Flags().Int64("max-vectors", 0, "Max live records (0 = unlimited)")
	nsCreateCmd.Flags().Int64("max-storage-bytes", 0, "Max compressed record storage in bytes (0 = unlimited)")
	nsCreateCmd.Flags().Int("max-batch-size", 0, "Max ops per BatchExecute call (0 = unlimited)")
	nsCreateCmd.Flags().Int("max-results-per-query", 0, "Max k per Query/HybridQuery call (0 = unlimited)")
	nsCreateCmd.Flags().Int("max-concurrent-queries", 0, "Max simultaneously in-flight queries (0 = unlimited)")

	nsCmd.AddCommand(nsCreateCmd, nsListCmd, nsGetCmd, nsStatusCmd, nsDeleteCmd, nsStatsCmd)
}
