package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scribehq/scribe/internal/config"
	"github.com/scribehq/scribe/internal/modelcache"
	"github.com/scribehq/scribe/internal/notify"
)

var flagModelDir string

// newModelCmd implements `scribe model list|list-available|download|set|
// info|remove`, thin wrappers over internal/modelcache, per spec.md §6's
// "operates on the model cache (external to core)".
func newModelCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "model",
		Short: "Manage cached Whisper models",
	}
	root.PersistentFlags().StringVar(&flagModelDir, "dir", "", "model cache directory (default ~/.cache/scribe/models)")

	root.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List cached and uncached model sizes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cache, err := openModelCache()
				if err != nil {
					return newExitError(exitFailure, err)
				}
				for _, d := range cache.List() {
					printDescriptor(d)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "list-available",
			Short: "List every model size scribe knows how to download",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				for _, size := range modelcache.Sizes {
					fmt.Println(size)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "download <size>",
			Short: "Download a model size into the cache",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cache, err := openModelCache()
				if err != nil {
					return newExitError(exitFailure, err)
				}
				logger, err := newLogger(config.Logging{Level: "info"})
				if err != nil {
					return newExitError(exitFailure, err)
				}
				notifier := notify.New(notify.Config{}, logger)
				err = cache.Download(context.Background(), args[0], func(msg string) {
					fmt.Println(msg)
					notifier.Progress(msg)
				})
				if err != nil {
					return newExitError(exitFailure, err)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <size>",
			Short: "Check a model size is cached and print the config setting that selects it (config.toml is not edited)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cache, err := openModelCache()
				if err != nil {
					return newExitError(exitFailure, err)
				}
				d := cache.Info(args[0])
				if !d.Cached {
					return newExitError(exitFailure, fmt.Errorf("model %q is not downloaded; run `scribe model download %s` first", args[0], args[0]))
				}
				fmt.Printf("transcription.model = %q in config.toml to use it\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "info <size>",
			Short: "Report cache status for one model size",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cache, err := openModelCache()
				if err != nil {
					return newExitError(exitFailure, err)
				}
				printDescriptor(cache.Info(args[0]))
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove <size>",
			Short: "Delete a cached model size",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cache, err := openModelCache()
				if err != nil {
					return newExitError(exitFailure, err)
				}
				if err := cache.Remove(args[0]); err != nil {
					return newExitError(exitFailure, err)
				}
				return nil
			},
		},
	)
	return root
}

func modelCacheDirOrDefault() string {
	if flagModelDir != "" {
		return flagModelDir
	}
	dir, err := modelcache.DefaultDir()
	if err != nil {
		return ""
	}
	return dir
}

func openModelCache() (*modelcache.Cache, error) {
	return modelcache.New(modelCacheDirOrDefault())
}

func printDescriptor(d modelcache.Descriptor) {
	status := "not cached"
	if d.Cached {
		status = fmt.Sprintf("cached, %d bytes", d.SizeBytes)
	}
	fmt.Printf("%-8s %s\n", d.Size, status)
}
