package commands

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/stupid-db/stupid-db/pkg/segment"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
	countStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Segment store operations",
}

var segmentRetention int

func init() {
	segmentEvictCmd.Flags().IntVar(&segmentRetention, "retention-days", 90, "retention horizon for eviction")
	segmentCmd.AddCommand(segmentListCmd, segmentStatsCmd, segmentEvictCmd)
}

var segmentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sealed segments",
	RunE: func(_ *cobra.Command, _ []string) error {
		store, err := segment.OpenStore(segment.StoreConfig{DataDir: dataDir})
		if err != nil {
			return err
		}
		segments := store.ListSegments()
		if len(segments) == 0 {
			fmt.Println(dimStyle.Render("no segments"))
			return nil
		}
		for _, id := range segments {
			reader, err := segment.OpenReader(dataDir, id)
			if err != nil {
				fmt.Printf("%s  %s\n", id, dimStyle.Render("unreadable"))
				continue
			}
			meta := reader.Meta()
			reader.Close()
			fmt.Printf("%s  %s docs  %s bytes (%s raw, %s)\n",
				headerStyle.Render(id),
				countStyle.Render(fmt.Sprint(meta.DocumentCount)),
				countStyle.Render(fmt.Sprint(meta.SizeBytes)),
				fmt.Sprint(meta.RawBytes),
				meta.Compression)
		}
		return nil
	},
}

var segmentStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store-level statistics",
	RunE: func(_ *cobra.Command, _ []string) error {
		store, err := segment.OpenStore(segment.StoreConfig{DataDir: dataDir})
		if err != nil {
			return err
		}
		stats := store.Stats()
		fmt.Printf("%s %s\n", headerStyle.Render("segments:"), countStyle.Render(fmt.Sprint(stats.SegmentCount)))
		fmt.Printf("%s %s\n", headerStyle.Render("documents:"), countStyle.Render(fmt.Sprint(stats.DocumentCount)))
		return nil
	},
}

var segmentEvictCmd = &cobra.Command{
	Use:   "evict",
	Short: "Delete segments past the retention horizon",
	RunE: func(_ *cobra.Command, _ []string) error {
		store, err := segment.OpenStore(segment.StoreConfig{
			DataDir:       dataDir,
			RetentionDays: segmentRetention,
		})
		if err != nil {
			return err
		}
		evicted, err := store.EvictExpired()
		if err != nil {
			return err
		}
		if len(evicted) == 0 {
			fmt.Println(dimStyle.Render("nothing to evict"))
			return nil
		}
		for _, id := range evicted {
			fmt.Printf("evicted %s\n", headerStyle.Render(id))
		}
		fmt.Println(dimStyle.Render("rebuild the graph to drop nodes that only referenced evicted segments"))
		return nil
	},
}
