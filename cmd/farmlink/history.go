package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/muurk/farmlink/internal/discovery"
	"github.com/muurk/farmlink/internal/journal"
)

// History command flags
var (
	historyLimit     int
	historyPositions bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent transfers or positions from the journal",
	Example: `  farmlink history
  farmlink history --positions --limit 50`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

// Feeds command flags
var feedsTimeout time.Duration

var feedsCmd = &cobra.Command{
	Use:   "feeds [instance]",
	Short: "Find event feeds on the local network",
	Long: `Browse mDNS for farmlink event feeds started with 'farmlink listen --feed'.

With an instance name, wait for that feed only and print its URL.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFeeds,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of rows to show")
	historyCmd.Flags().BoolVar(&historyPositions, "positions", false, "Show positions instead of transfers")

	feedsCmd.Flags().DurationVar(&feedsTimeout, "timeout", discovery.DefaultScanTimeout, "How long to listen for answers")

	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(feedsCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	path, err := cfg.JournalPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("No journal yet at %s\n", path)
		return nil
	}

	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	if historyPositions {
		positions, err := j.RecentPositions(historyLimit)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "WHEN\tX\tY")
		for _, p := range positions {
			fmt.Fprintf(w, "%s\t%g\t%g\n", humanize.Time(p.ObservedAt), p.X, p.Y)
		}
		return w.Flush()
	}

	transfers, err := j.RecentTransfers(historyLimit)
	if err != nil {
		return err
	}
	if len(transfers) == 0 {
		fmt.Println("No transfers recorded.")
		return nil
	}

	fmt.Fprintln(w, "WHEN\tSTATUS\tFILE\tKIND\tSIZE\tCHUNKS\tNOTE")
	for _, t := range transfers {
		note := ""
		switch {
		case t.Status == journal.StatusFailed:
			note = t.Error
		case !t.ChecksumOK:
			note = "checksum mismatch"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			humanize.Time(t.ReceivedAt), t.Status, dash(t.FileName), dash(t.Kind),
			humanize.Bytes(uint64(t.Size)), t.Chunks, note)
	}
	return w.Flush()
}

func runFeeds(cmd *cobra.Command, args []string) error {
	scanner := discovery.NewScanner()
	scanner.Timeout = feedsTimeout

	if len(args) == 1 {
		f, err := scanner.WaitForFeed(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(f.URL())
		return nil
	}

	fmt.Printf("Browsing for event feeds (timeout: %s)...\n\n", feedsTimeout)
	feeds, err := scanner.Browse(cmd.Context())
	if err != nil {
		return err
	}

	if len(feeds) == 0 {
		fmt.Println("No feeds found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Start one with 'farmlink listen --feed'")
		fmt.Println("  - Check that multicast (UDP 5353) is allowed between the hosts")
		fmt.Println("  - Try increasing --timeout")
		return nil
	}

	fmt.Printf("Found %d feed(s):\n\n", len(feeds))
	for i, f := range feeds {
		fmt.Printf("%d. %s\n", i+1, f.Instance)
		fmt.Printf("   URL:     %s\n", f.URL())
		fmt.Printf("   Host:    %s\n", f.Hostname)
		if f.Version != "" {
			fmt.Printf("   Version: %s\n", f.Version)
		}
		fmt.Println()
	}
	return nil
}
