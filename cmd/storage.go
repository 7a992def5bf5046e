package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"soundvault/config"
	"soundvault/storage"

	"github.com/spf13/cobra"
)

var (
	storageNamespace string
	storageStats     bool
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Inspect the blob storage buckets",
	Long:  `List objects or show per-bucket statistics for the audio and image namespaces.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		store, err := storage.NewMinioStore(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to MinIO: %v", err)
		}

		namespaces := []storage.Namespace{storage.NamespaceAudio, storage.NamespaceImage}
		if storageNamespace != "" {
			ns := storage.Namespace(storageNamespace)
			if ns != storage.NamespaceAudio && ns != storage.NamespaceImage {
				log.Fatalf("Unknown namespace %q (want %q or %q)",
					storageNamespace, storage.NamespaceAudio, storage.NamespaceImage)
			}
			namespaces = []storage.Namespace{ns}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		for _, ns := range namespaces {
			if storageStats {
				stats, err := store.Stats(ctx, ns)
				if err != nil {
					log.Fatalf("Failed to collect stats for %s: %v", ns, err)
				}
				fmt.Printf("%s (%s): %d objects, %.2f MB\n",
					ns, stats.Bucket, stats.Objects, float64(stats.TotalSize)/(1024*1024))
				continue
			}

			entries, err := store.ListObjects(ctx, ns)
			if err != nil {
				log.Fatalf("Failed to list %s: %v", ns, err)
			}
			fmt.Printf("%s: %d objects\n", ns, len(entries))
			for _, entry := range entries {
				fmt.Printf("  %s  %10d  %s\n",
					entry.LastModified.Format(time.RFC3339), entry.Size, entry.Key)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(storageCmd)

	storageCmd.Flags().StringVarP(&storageNamespace, "namespace", "n", "", "Limit to one namespace (audio or image)")
	storageCmd.Flags().BoolVarP(&storageStats, "stats", "s", false, "Show per-bucket statistics instead of listing objects")

	storageCmd.Example = `  # List every stored object
  soundvault storage

  # Show statistics for the audio bucket
  soundvault storage -n audio -s`
}
