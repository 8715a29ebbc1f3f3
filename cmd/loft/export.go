package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/loft"
	"github.com/aretw0/loft/pkg/snapshot"
)

var (
	exportKey    string
	exportDir    string
	exportBucket string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a JSON snapshot of every table",
	Long: `Write a JSON snapshot of every table to the export directory,
or to S3 when export.s3 is configured or --bucket is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		sink, where, err := openSink(ctx, cmd, cfg)
		if err != nil {
			return err
		}

		app, err := openApp(ctx, cmd, cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		key := snapshotKey(cfg)
		doc, err := snapshot.Export(ctx, app.Service, sink, key)
		if err != nil {
			return err
		}

		if jsonOut {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"location": where,
				"key":      key,
				"records":  doc.Count(),
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d records to %s/%s\n", doc.Count(), where, key)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Restore records from a JSON snapshot",
	Long: `Upsert every record of a snapshot into the store.
Records missing from the snapshot are left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg.Seed.Auto = false

		ctx := cmd.Context()
		sink, where, err := openSink(ctx, cmd, cfg)
		if err != nil {
			return err
		}

		app, err := openApp(ctx, cmd, cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		key := snapshotKey(cfg)
		n, err := snapshot.Import(ctx, app.Service, sink, key)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d records from %s/%s\n", n, where, key)
		return nil
	},
}

// openSink picks the snapshot destination: S3 when a bucket is configured,
// the export directory otherwise.
func openSink(ctx context.Context, cmd *cobra.Command, cfg *loft.Config) (snapshot.Sink, string, error) {
	s3cfg := cfg.Export.S3
	if cmd.Flags().Changed("bucket") {
		if s3cfg == nil {
			s3cfg = &snapshot.S3Config{}
		}
		s3cfg.Bucket = exportBucket
	}
	if s3cfg != nil && s3cfg.Bucket != "" {
		sink, err := snapshot.NewS3Sink(ctx, *s3cfg)
		if err != nil {
			return nil, "", err
		}
		return sink, "s3://" + sink.Bucket(), nil
	}

	dir := cfg.Export.Dir
	if cmd.Flags().Changed("dir") {
		dir = exportDir
	}
	return snapshot.NewFileSink(dir), dir, nil
}

func snapshotKey(cfg *loft.Config) string {
	switch {
	case exportKey != "":
		return exportKey
	case cfg.Export.Key != "":
		return cfg.Export.Key
	default:
		return snapshot.DefaultKey
	}
}

func init() {
	for _, c := range []*cobra.Command{exportCmd, importCmd} {
		c.Flags().StringVarP(&exportKey, "key", "k", "", "Snapshot file name or object key")
		c.Flags().StringVar(&exportDir, "dir", "", "Export directory (overrides export.dir)")
		c.Flags().StringVar(&exportBucket, "bucket", "", "S3 bucket (overrides export.s3.bucket)")
	}
	rootCmd.AddCommand(exportCmd, importCmd)
}
