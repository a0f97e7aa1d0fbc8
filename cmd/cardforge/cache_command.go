package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"cardforge/internal/artifactcache"
	"cardforge/internal/cardgen"
	"cardforge/internal/logging"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the artifact caches",
	}
	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheShowCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	return cacheCmd
}

func openCache(ctx *commandContext, category string) (*artifactcache.Cache, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return artifactcache.New(category, cfg.CachePath(category), logging.NewNop()), nil
}

func validCategory(category string) error {
	for _, known := range cardgen.Categories() {
		if category == known {
			return nil
		}
	}
	return fmt.Errorf("unknown cache category %q (expected one of %v)", category, cardgen.Categories())
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show entry counts per artifact category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0, len(cardgen.Categories()))
			for _, category := range cardgen.Categories() {
				cache, err := openCache(ctx, category)
				if err != nil {
					return err
				}
				rows = append(rows, []string{category, strconv.Itoa(cache.Count()), cache.Path()})
			}
			out := cmd.OutOrStdout()
			if stdoutIsTerminal() {
				fmt.Fprintln(out, renderTable([]string{"Category", "Entries", "File"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft}))
				return nil
			}
			for _, row := range rows {
				fmt.Fprintf(out, "%s\t%s\t%s\n", row[0], row[1], row[2])
			}
			return nil
		},
	}
}

func newCacheShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <category>",
		Short: "List the keys stored in one category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category := args[0]
			if err := validCategory(category); err != nil {
				return err
			}
			cache, err := openCache(ctx, category)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			entries := cache.List()
			if len(entries) == 0 {
				fmt.Fprintf(out, "cache %q is empty\n", category)
				return nil
			}
			for _, entry := range entries {
				fmt.Fprintln(out, entry.Key)
			}
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear [category]",
		Short: "Remove cached artifacts for one category or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if all {
				for _, category := range cardgen.Categories() {
					cache, err := openCache(ctx, category)
					if err != nil {
						return err
					}
					if err := cache.Clear(); err != nil {
						return fmt.Errorf("clear %s cache: %w", category, err)
					}
				}
				fmt.Fprintln(out, "cleared all artifact caches")
				return nil
			}
			if len(args) != 1 {
				return fmt.Errorf("pass a category or --all")
			}
			category := args[0]
			if err := validCategory(category); err != nil {
				return err
			}
			cache, err := openCache(ctx, category)
			if err != nil {
				return err
			}
			if err := cache.Clear(); err != nil {
				return fmt.Errorf("clear %s cache: %w", category, err)
			}
			fmt.Fprintf(out, "cleared %s cache\n", category)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Clear every artifact category")
	return cmd
}
