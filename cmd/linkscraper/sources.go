package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"linkscraper/pkg/linkedin"
	"linkscraper/pkg/store"
	"linkscraper/pkg/store/sqlitestore"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage scrape sources in the local store",
	Long: `Manage scrape sources when the sqlite storage driver is active.

With the airtable driver, sources are managed in the Airtable base
directly and these commands are unavailable.`,
}

var sourcesAddCmd = &cobra.Command{
	Use:   "add <profile-url>",
	Short: "Add or reactivate a scrape source",
	Example: `  linkscraper sources add https://www.linkedin.com/company/acme/ --name "Acme" --group Competitors
  linkscraper sources add https://www.linkedin.com/in/janedoe/ --priority 5`,
	Args: cobra.ExactArgs(1),
	RunE: runSourcesAdd,
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active scrape sources",
	RunE:  runSourcesList,
}

var (
	sourceName     string
	sourceGroup    string
	sourcePriority int
)

func init() {
	rootCmd.AddCommand(sourcesCmd)
	sourcesCmd.AddCommand(sourcesAddCmd)
	sourcesCmd.AddCommand(sourcesListCmd)

	sourcesAddCmd.Flags().StringVar(&sourceName, "name", "", "display name (defaults to the URL)")
	sourcesAddCmd.Flags().StringVar(&sourceGroup, "group", "", "group label applied to scraped posts")
	sourcesAddCmd.Flags().IntVar(&sourcePriority, "priority", 0, "scrape order priority, higher first")
}

func openLocalStore() (*sqlitestore.Store, error) {
	cfg, err := loadConfigLenient()
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Driver != "sqlite" {
		return nil, fmt.Errorf("sources commands require the sqlite storage driver (current: %s)", cfg.Storage.Driver)
	}
	return sqlitestore.Open(cfg.Storage.SQLite.Path)
}

func runSourcesAdd(cmd *cobra.Command, args []string) error {
	target := args[0]
	if _, ok := linkedin.ListingURL(target); !ok {
		return fmt.Errorf("unsupported source URL shape: %s (expected a /company/, /school/ or /in/ page)", target)
	}

	st, err := openLocalStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	name := sourceName
	if name == "" {
		name = target
	}
	src := store.Source{
		DisplayName: name,
		TargetURL:   target,
		GroupLabel:  sourceGroup,
		Priority:    sourcePriority,
	}
	if err := st.AddSource(cmd.Context(), src); err != nil {
		return err
	}
	fmt.Printf("Source %q added.\n", name)
	return nil
}

func runSourcesList(cmd *cobra.Command, args []string) error {
	st, err := openLocalStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	sources, err := st.ActiveSources(cmd.Context())
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		fmt.Println("No active sources.")
		return nil
	}
	for _, src := range sources {
		fmt.Printf("%-4s p%-3d %-30s %s\n", src.ID, src.Priority, src.DisplayName, src.TargetURL)
	}
	return nil
}
