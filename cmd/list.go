package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var listProject string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored specifications by type and project",
	Example: `  specloom list
  specloom list --project "habit tracker"
  specloom list --doc-type engineering_todo`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initApp(); err != nil {
			return err
		}
		listing, err := specs.List(listProject, listDocTypeFilter())
		if err != nil {
			return err
		}
		if len(listing) == 0 {
			console.Info("No stored documents yet. Start with 'specloom create'.")
			return nil
		}

		docTypes := make([]string, 0, len(listing))
		for dt := range listing {
			docTypes = append(docTypes, dt)
		}
		sort.Strings(docTypes)

		for _, dt := range docTypes {
			console.Section(dt)
			projects := make([]string, 0, len(listing[dt]))
			for slug := range listing[dt] {
				projects = append(projects, slug)
			}
			sort.Strings(projects)
			for _, slug := range projects {
				versions := listing[dt][slug]
				console.Print(fmt.Sprintf("  %s (%d version(s))", versions[0].ProductName, len(versions)))
				for _, v := range versions {
					console.Print(fmt.Sprintf("    v%-3d %s  %s", v.Version, v.FormattedTimestamp, v.Path))
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listProject, "project", "", "only show this project")
}

// listDocTypeFilter turns the global --doc-type flag into a listing filter.
// The flag also selects the save partition for create, so only an explicit
// flag narrows the listing; the configured default does not.
func listDocTypeFilter() string {
	if rootCmd.PersistentFlags().Changed("doc-type") {
		return flagDocType
	}
	return ""
}
