package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stupid-db/stupid-db/pkg/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Catalog operations",
}

func init() {
	catalogCmd.AddCommand(catalogShowCmd, catalogRebuildCmd)
}

var catalogShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current merged catalog",
	RunE: func(_ *cobra.Command, _ []string) error {
		store, err := catalog.NewFSStore(dataDir + "/catalog")
		if err != nil {
			return err
		}
		current, ok, err := store.LoadCurrent()
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println(dimStyle.Render("no catalog; run 'stupiddb catalog rebuild'"))
			return nil
		}

		fmt.Printf("%s %d nodes, %d edges\n\n",
			headerStyle.Render("totals:"), current.TotalNodes, current.TotalEdges)
		for _, e := range current.EntityTypes {
			fmt.Printf("  %-12s %6d  %s\n", e.EntityType, e.NodeCount,
				dimStyle.Render(strings.Join(e.SampleKeys, ", ")))
		}
		fmt.Println()
		for _, e := range current.EdgeTypes {
			fmt.Printf("  %-16s %6d  %s\n", e.EdgeType, e.Count,
				dimStyle.Render(strings.Join(e.SourceTypes, ",")+" -> "+strings.Join(e.TargetTypes, ",")))
		}
		if len(current.ExternalSources) > 0 {
			fmt.Println()
			for _, src := range current.ExternalSources {
				fmt.Printf("  %s (%s, %d databases)\n", src.Name, src.Kind, len(src.Databases))
			}
		}
		return nil
	},
}

var catalogRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the merged catalog from persisted partials",
	RunE: func(_ *cobra.Command, _ []string) error {
		store, err := catalog.NewFSStore(dataDir + "/catalog")
		if err != nil {
			return err
		}
		merged, err := store.RebuildFromPartials()
		if err != nil {
			return err
		}
		fmt.Printf("rebuilt: %d entity types, %d edge types, %d nodes, %d edges\n",
			len(merged.EntityTypes), len(merged.EdgeTypes), merged.TotalNodes, merged.TotalEdges)
		return nil
	},
}
