package client

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crawlkit/frontier/internal/frontier"
)

// NewQueueCommand constructs the `queue` command group and subcommands.
func NewQueueCommand(baseURL BaseURLFunc) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:     "queue",
		Aliases: []string{"q"},
		Short:   "Queue operations (deduplicated crawl frontier with leases)",
		Long: `Queue operations for frontier crawl queues.

Item Lifecycle:
  Enqueue → dedup filter → Ready → [Fetch] → Leased → crawl completes
                             ↑                  ↓ (lease expires)
                             └──── [Reclaim] ───┘

Core Operations:
  create    Register a queue with a dedup filter (exact or bloom)
  add       Enqueue an item; duplicates are dropped silently
  fetch     Lease a batch of items to a worker
  reclaim   Return expired leases to the back of the queue
  stats     Show queue counters
  list      List registered queues`,
	}

	queueCmd.AddCommand(
		newQueueCreateCommand(baseURL),
		newQueueAddCommand(baseURL),
		newQueueFetchCommand(baseURL),
		newQueueReclaimCommand(baseURL),
		newQueueStatsCommand(baseURL),
		newQueueListCommand(baseURL),
	)
	return queueCmd
}

func newQueueCreateCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a queue with a dedup filter",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("queue")
			kind, _ := cmd.Flags().GetString("dedup")
			capacity, _ := cmd.Flags().GetInt("bloom-capacity")
			fpRate, _ := cmd.Flags().GetFloat64("bloom-fp-rate")

			body := map[string]interface{}{"queue": name}
			if kind != "" {
				body["dedup"] = frontier.DedupConfig{
					Kind:          frontier.DedupKind(kind),
					BloomCapacity: capacity,
					BloomFPRate:   fpRate,
				}
			}
			if err := postJSON(baseURL(), "/v1/queues/create", body, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "created")
			return nil
		},
	}
	cmd.Flags().StringP("queue", "q", "", "Queue name")
	cmd.Flags().String("dedup", "", "Dedup filter: exact|bloom (server default when empty)")
	cmd.Flags().Int("bloom-capacity", 1_000_000, "Expected distinct keys (bloom only)")
	cmd.Flags().Float64("bloom-fp-rate", 1e-4, "Target false-positive rate (bloom only)")
	_ = cmd.MarkFlagRequired("queue")
	return cmd
}

func newQueueAddCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Enqueue an item",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("queue")
			key, _ := cmd.Flags().GetString("key")
			payload, _ := cmd.Flags().GetString("payload")
			forefront, _ := cmd.Flags().GetBool("forefront")

			body := map[string]interface{}{
				"queue":     name,
				"items":     []frontier.Item{{UniqueKey: key, Payload: []byte(payload)}},
				"forefront": forefront,
			}
			var resp struct {
				Inserted []string `json:"inserted"`
			}
			if err := postJSON(baseURL(), "/v1/queues/enqueue", body, &resp); err != nil {
				return err
			}
			if len(resp.Inserted) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "duplicate, dropped")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "inserted:", resp.Inserted[0])
			return nil
		},
	}
	cmd.Flags().StringP("queue", "q", "", "Queue name")
	cmd.Flags().String("key", "", "Unique key, e.g. a normalized URL")
	cmd.Flags().String("payload", "", "Opaque payload stored with the key")
	cmd.Flags().Bool("forefront", false, "Enqueue at the front of the queue")
	_ = cmd.MarkFlagRequired("queue")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newQueueFetchCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Lease a batch of items to a worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("queue")
			batch, _ := cmd.Flags().GetInt("batch")
			owner, _ := cmd.Flags().GetString("owner")
			leaseMs, _ := cmd.Flags().GetInt64("lease-ms")
			if owner == "" {
				owner = defaultOwnerID()
			}

			body := map[string]interface{}{
				"queue":      name,
				"batch_size": batch,
				"owner_id":   owner,
				"lease_ms":   leaseMs,
			}
			var resp struct {
				Items []frontier.WorkItem `json:"items"`
			}
			if err := postJSON(baseURL(), "/v1/queues/fetch", body, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp.Items)
		},
	}
	cmd.Flags().StringP("queue", "q", "", "Queue name")
	cmd.Flags().Int("batch", 1, "Maximum items to lease")
	cmd.Flags().String("owner", "", "Worker identity (generated when empty)")
	cmd.Flags().Int64("lease-ms", 0, "Lease duration in ms (server default when 0)")
	_ = cmd.MarkFlagRequired("queue")
	return cmd
}

func newQueueReclaimCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reclaim",
		Short: "Return expired leases to the back of the queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("queue")
			max, _ := cmd.Flags().GetInt("max")

			body := map[string]interface{}{"queue": name, "max": max}
			var resp struct {
				Reclaimed int `json:"reclaimed"`
			}
			if err := postJSON(baseURL(), "/v1/queues/reclaim", body, &resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "reclaimed:", resp.Reclaimed)
			return nil
		},
	}
	cmd.Flags().StringP("queue", "q", "", "Queue name")
	cmd.Flags().Int("max", 0, "Sweep cap (server default when 0)")
	_ = cmd.MarkFlagRequired("queue")
	return cmd
}

func newQueueStatsCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("queue")
			var st frontier.Stats
			if err := getJSON(baseURL(), "/v1/queues/stats?queue="+name, &st); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
	cmd.Flags().StringP("queue", "q", "", "Queue name")
	_ = cmd.MarkFlagRequired("queue")
	return cmd
}

func newQueueListCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered queues",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp struct {
				Queues []string `json:"queues"`
			}
			if err := getJSON(baseURL(), "/v1/queues", &resp); err != nil {
				return err
			}
			for _, name := range resp.Queues {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
