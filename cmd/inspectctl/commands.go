package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/smbt-dev/inspectgo/internal/blobstore"
	"github.com/smbt-dev/inspectgo/internal/blobstore/local"
	"github.com/smbt-dev/inspectgo/internal/models"
	"github.com/smbt-dev/inspectgo/internal/services/catalog"
	"github.com/smbt-dev/inspectgo/internal/services/photos"
	"github.com/smbt-dev/inspectgo/internal/services/printer"
	"github.com/smbt-dev/inspectgo/internal/services/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSeedCmd(e *env) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Migrate the schema and upsert the photo catalog",
		Long: `Creates missing tables and upserts the categories and image groups of
the photo catalog. Without --file the built-in catalog is used, unless
CATALOG_SEED_FILE is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = e.cfg.Catalog.SeedFile
			}
			data, err := catalog.ReadSeed(file)
			if err != nil {
				return err
			}
			if err := e.db.AutoMigrate(models.All()...); err != nil {
				return fmt.Errorf("failed to migrate schema: %w", err)
			}
			n, err := catalog.Seed(cmd.Context(), e.db, data)
			if err != nil {
				return err
			}
			e.log.Info("photo catalog seeded", zap.Int("categories", n))
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d categories\n", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML catalog seed file")
	return cmd
}

func newAggregateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate <requestID>",
		Short: "Print the categorized work photos of a request as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requestID, err := parseID(args[0])
			if err != nil {
				return err
			}
			resolver := blobstore.NewResolver(e.cfg.Storage.PhotoBaseURL)
			buckets, err := photos.NewAggregator(e.db, resolver).Aggregate(cmd.Context(), requestID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(buckets)
		},
	}
}

func newRenderCmd(e *env) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "render <requestID>",
		Short: "Render the latest report of a request to a PDF file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requestID, err := parseID(args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = fmt.Sprintf("report-%d.pdf", requestID)
			}

			resolver := blobstore.NewResolver(e.cfg.Storage.PhotoBaseURL)
			assembler := report.NewAssembler(e.db, photos.NewAggregator(e.db, resolver), resolver)
			payload, err := assembler.ForRequest(cmd.Context(), requestID)
			if err != nil {
				return err
			}

			blobs, err := local.New(e.cfg.Storage.UploadsDir, e.log)
			if err != nil {
				return err
			}
			pdf, err := printer.RenderReport(cmd.Context(), payload, blobs, resolver, printer.Options{
				FontFile:   e.cfg.Report.FontFile,
				RequestURL: printer.RequestURL(e.cfg.Report.PublicURL, requestID),
				Date:       payload.CreatedAt,
				Log:        e.log,
			})
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, pdf, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", output, len(pdf))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default report-<id>.pdf)")
	return cmd
}
