package cli

import (
	"fmt"

	"github.com/alexweberk/ai-jobfinder/internal/cache"
	"github.com/spf13/cobra"
)

var cacheDir string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear cached results",
	Long: `Inspect or clear the cached scrape, extraction and recommendation results.

Examples:
  jobfinder cache list
  jobfinder cache clear https://www.anthropic.com/jobs
  jobfinder cache list -o ./my-results`,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cache entries",
	Args:  cobra.NoArgs,
	RunE:  runCacheList,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear <jobs-url>",
	Short: "Delete every cached result for a jobs URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheClear,
}

func init() {
	cacheCmd.PersistentFlags().StringVarP(&cacheDir, "output-dir", "o", "results", "directory for cached results")

	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func runCacheList(cmd *cobra.Command, args []string) error {
	store, err := cache.NewStore(cacheDir)
	if err != nil {
		return err
	}

	entries, err := store.List()
	if err != nil {
		return fmt.Errorf("list cache: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintf(out, "No cache entries in %s\n", store.Dir())
		return nil
	}

	fmt.Fprintf(out, "%-16s %-10s %-20s %s\n", "KIND", "SIZE", "MODIFIED", "KEY")
	fmt.Fprintln(out, "------------------------------------------------------------------------")
	for _, e := range entries {
		fmt.Fprintf(out, "%-16s %-10s %-20s %s\n", e.Kind, formatSize(e.Size), e.ModTime.Format("2006-01-02 15:04:05"), e.Key)
	}
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	store, err := cache.NewStore(cacheDir)
	if err != nil {
		return err
	}

	removed, err := store.Remove(args[0])
	if err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(removed) == 0 {
		fmt.Fprintf(out, "No cache entries for %s\n", args[0])
		return nil
	}
	for _, path := range removed {
		logger.Debug("removed cache entry", "path", path)
		fmt.Fprintf(out, "Removed %s\n", path)
	}
	return nil
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
