package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/voucherscan/internal/loader"
	"github.com/MeKo-Tech/voucherscan/internal/pdf"
	"github.com/MeKo-Tech/voucherscan/internal/pipeline"
)

const (
	outputFormatText = "text"
	outputFormatJSON = "json"
	outputFormatYAML = "yaml"
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan [files|dirs|urls...]",
	Short: "Scan voucher images and extract voucher codes",
	Long: `Scan one or more voucher images and extract the 16-digit voucher codes.

Inputs may be image files, directories (scanned recursively), HTTP(S) URLs
or PDF files with embedded page images. Extracted codes are stored in the
configured backend.

Supported image formats: JPEG, PNG, BMP, TIFF

Examples:
  voucherscan scan photo.jpg
  voucherscan scan scans/ --workers 8
  voucherscan scan https://example.com/voucher.png --format json
  voucherscan scan sheet.pdf --pages 1-3 --output results.json`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runScanCommand,
}

func runScanCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}
	pages, _ := cmd.Flags().GetString("pages")

	images, pdfs, err := expandInputs(args)
	if err != nil {
		return err
	}
	if len(images) == 0 && len(pdfs) == 0 {
		return errors.New("no scannable inputs found")
	}

	backend, err := openStoreBackend(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing store: %v\n", err)
		}
	}()

	pl, err := buildPipeline(cfg, backend.recorder)
	if err != nil {
		return fmt.Errorf("failed to build scan pipeline: %w", err)
	}
	defer func() {
		if err := pl.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing pipeline: %v\n", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var results []*pipeline.Result
	var scanErrs []error

	if len(images) > 0 {
		batch, err := pl.ProcessBatch(ctx, images, pipeline.BatchOptions{
			Workers:         cfg.Batch.Workers,
			ContinueOnError: cfg.Batch.ContinueOnError,
		})
		if err != nil {
			return err
		}
		for _, item := range batch {
			if item.Err != nil {
				scanErrs = append(scanErrs, fmt.Errorf("%s: %w", item.Locator, item.Err))
				continue
			}
			results = append(results, item.Result)
		}
	}

	for _, path := range pdfs {
		pdfResults, err := pl.ProcessPDF(ctx, path, pages)
		if err != nil {
			if !cfg.Batch.ContinueOnError {
				return fmt.Errorf("failed to scan %s: %w", path, err)
			}
			scanErrs = append(scanErrs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		results = append(results, pdfResults...)
	}

	out, err := pipeline.FormatResults(results, cfg.Output.Format)
	if err != nil {
		return err
	}
	if err := writeOutput(cmd, cfg.Output.File, out); err != nil {
		return err
	}

	for _, scanErr := range scanErrs {
		fmt.Fprintf(os.Stderr, "warning: %v\n", scanErr)
	}
	return nil
}

// expandInputs splits the arguments into image locators and PDF paths.
// Directories are walked recursively for supported images.
func expandInputs(args []string) (images, pdfs []string, err error) {
	for _, arg := range args {
		if loader.IsURL(arg) {
			images = append(images, arg)
			continue
		}
		info, err := os.Stat(arg)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot read input %s: %w", arg, err)
		}
		if info.IsDir() {
			found, err := loader.Discover(arg)
			if err != nil {
				return nil, nil, err
			}
			images = append(images, found...)
			continue
		}
		if pdf.IsPDF(arg) {
			pdfs = append(pdfs, arg)
			continue
		}
		images = append(images, arg)
	}
	return images, pdfs, nil
}

func writeOutput(cmd *cobra.Command, file, content string) error {
	if file != "" {
		if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", file)
		return err
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	_, err := fmt.Fprint(cmd.OutOrStdout(), content)
	return err
}

func addScanFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "text", "output format (text, json, yaml)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringP("language", "l", "eng", "recognition language")
	cmd.Flags().Bool("rectify", true, "straighten the voucher sheet before recognition")
	cmd.Flags().String("segment-mode", "quarters", "region layout: quarters or halves")
	cmd.Flags().Bool("second-pass", true, "run a second recognition pass with block segmentation")
	cmd.Flags().String("cache-dir", "", "directory for cached URL downloads")
	cmd.Flags().String("debug-dir", "", "directory to write debug artifacts (masks, overlays, extraction traces)")
	cmd.Flags().String("pages", "", "PDF page selection (e.g. 1,3 or 2-5)")
	cmd.Flags().Int("workers", 4, "number of parallel scan workers")
	cmd.Flags().Bool("continue-on-error", true, "keep scanning remaining inputs after a failure")
	cmd.Flags().String("store", "sqlite", "store backend: sqlite or object")
	cmd.Flags().String("db", "vouchers.db", "voucher database path (sqlite backend)")
	cmd.Flags().String("object-dir", "", "object store directory (object backend)")
}

// bindScanFlags binds all flags to viper configuration keys.
func bindScanFlags(cmd *cobra.Command) {
	flagBindings := []struct {
		key  string
		flag string
	}{
		{"output.format", "format"},
		{"output.file", "output"},
		{"pipeline.ocr.language", "language"},
		{"pipeline.rectify.enabled", "rectify"},
		{"pipeline.segment.mode", "segment-mode"},
		{"pipeline.ocr.second_pass_enabled", "second-pass"},
		{"pipeline.cache_dir", "cache-dir"},
		{"pipeline.debug_dir", "debug-dir"},
		{"batch.workers", "workers"},
		{"batch.continue_on_error", "continue-on-error"},
		{"store.backend", "store"},
		{"store.sqlite_path", "db"},
		{"store.object_dir", "object-dir"},
	}

	for _, binding := range flagBindings {
		if err := viper.BindPFlag(binding.key, cmd.Flags().Lookup(binding.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", binding.flag, err))
		}
	}
}

func init() {
	rootCmd.AddCommand(scanCmd)

	addScanFlags(scanCmd)
	bindScanFlags(scanCmd)
}
