package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	cachePath  string
	cacheClear bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "List or clear cached Overpass responses",
	RunE:  runCache,
}

func init() {
	cacheCmd.Flags().StringVar(&cachePath, "cache", ".cache/overpass.db", "bbolt file for raw responses")
	cacheCmd.Flags().BoolVar(&cacheClear, "clear", false, "delete every cached response")
}

func runCache(cmd *cobra.Command, args []string) error {
	cache, err := openCache(cachePath)
	if err != nil {
		return err
	}
	defer cache.Close()

	cached, err := cache.Keys()
	if err != nil {
		return err
	}
	for _, k := range cached {
		if cacheClear {
			if err := cache.Delete(k); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), k)
	}
	if cacheClear {
		fmt.Fprintf(cmd.OutOrStdout(), "cleared %d cached responses\n", len(cached))
	}
	return nil
}
