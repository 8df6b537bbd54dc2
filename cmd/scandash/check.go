package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hakim/scandash/internal/events"
	"github.com/hakim/scandash/internal/models"
	"github.com/hakim/scandash/internal/scanner"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the scanner and history store are reachable",
	Long: `Verify the configured dependencies: the scanner backend (by listing its
historical scans), the history store, and the event broker when one is configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireConfig(); err != nil {
			return err
		}

		type result struct {
			name   string
			ok     bool
			detail string
		}
		var results []result

		// Scanner backend
		client, err := scanner.NewHTTPClient(scanner.Options{
			BaseURL: cfg.Scanner.BaseURL,
			Timeout: cfg.RequestTimeout(),
		})
		if err == nil {
			var hist []models.Scan
			hist, err = client.ListHistorical(context.Background())
			if err == nil {
				results = append(results, result{"scanner", true, fmt.Sprintf("%s (%d historical scans)", cfg.Scanner.BaseURL, len(hist))})
			}
		}
		if err != nil {
			results = append(results, result{"scanner", false, err.Error()})
		}

		// History store
		backend, closer, err := openBackend(cfg.Storage)
		if err == nil {
			stored, loadErr := backend.LoadScans()
			closer.Close()
			if loadErr != nil {
				results = append(results, result{"history", false, loadErr.Error()})
			} else {
				results = append(results, result{"history", true, fmt.Sprintf("%s (%d scans)", cfg.Storage.Driver, len(stored))})
			}
		} else {
			results = append(results, result{"history", false, err.Error()})
		}

		// Event broker
		if cfg.Notify.AMQPURL != "" {
			pub, err := events.Dial(cfg.Notify.AMQPURL, cfg.Notify.AMQPQueue)
			if err != nil {
				results = append(results, result{"events", false, err.Error()})
			} else {
				results = append(results, result{"events", true, "queue " + pub.Queue()})
				pub.Close()
			}
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "Component\tStatus\tDetail")
		fmt.Fprintln(w, "---------\t------\t------")
		failed := 0
		for _, r := range results {
			status := "[+]"
			if !r.ok {
				status = "[-]"
				failed++
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.name, status, r.detail)
		}
		w.Flush()

		fmt.Println()
		fmt.Printf("Summary: %d/%d components reachable\n", len(results)-failed, len(results))
		if failed > 0 {
			return fmt.Errorf("%d component(s) unreachable", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
