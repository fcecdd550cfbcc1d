package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/run"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape [URL]",
	Short: "Scrape products starting from a listing page",
	Args:  cobra.ExactArgs(1),
	RunE:  runScrape,
}

func init() {
	f := scrapeCmd.Flags()
	f.Int("max-products", cfg.Crawl.MaxProducts, "Maximum product pages to extract (1-1000)")
	f.Int("max-pages", cfg.Crawl.MaxPages, "Maximum listing pages to scan for product links (1-50)")
	f.Bool("browser", false, "Fetch pages through a scripted Chromium instead of plain HTTP")
	f.Bool("headless", cfg.Browser.Headless, "Hide the browser window (with --browser)")
	f.Bool("images", !cfg.Browser.DisableImages, "Load images (with --browser)")
	f.String("format", cfg.Export.Format, "Export format (xlsx, csv, markdown)")
	f.String("merge", "", "Previous CSV/XLSX export to append new rows to")
	f.StringP("output", "o", cfg.Export.OutputDir, "Directory to write the export to")
	f.Bool("base64", false, "Print the export base64-encoded to stdout instead of writing a file")
}

func runScrape(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	maxProducts, _ := flags.GetInt("max-products")
	maxPages, _ := flags.GetInt("max-pages")
	useBrowser, _ := flags.GetBool("browser")
	headless, _ := flags.GetBool("headless")
	images, _ := flags.GetBool("images")
	format, _ := flags.GetString("format")
	mergePath, _ := flags.GetString("merge")
	outDir, _ := flags.GetString("output")
	asBase64, _ := flags.GetBool("base64")

	in := run.Input{
		URL:           args[0],
		MaxProducts:   maxProducts,
		MaxPages:      maxPages,
		UseBrowser:    useBrowser,
		Headless:      headless,
		DisableImages: !images,
		Format:        format,
	}
	if mergePath != "" {
		data, err := os.ReadFile(mergePath)
		if err != nil {
			return models.NewScrapeError(models.ErrCodeInvalidInput, "cannot read merge file", err)
		}
		in.UploadName = mergePath
		in.UploadData = data
	}

	errOut := cmd.ErrOrStderr()
	progress := func(p models.Progress) {
		if p.Total > 0 {
			fmt.Fprintf(errOut, "\r[%3.0f%%] %s", p.Fraction()*100, p.Message)
			return
		}
		fmt.Fprintln(errOut, p.Message)
	}

	res, err := run.NewRunner(cfg).Run(cmd.Context(), in, progress)
	if err != nil {
		return err
	}
	fmt.Fprintln(errOut)

	if res.Empty() {
		fmt.Fprintln(errOut, "warning:", res.Warning)
		return nil
	}

	exp := res.Export
	if asBase64 {
		fmt.Fprintln(cmd.OutOrStdout(), exp.Base64())
		return nil
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(outDir, exp.Filename)
	if err := os.WriteFile(path, exp.Data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(errOut, "Scraped %d new products (%d rows total) in %s\n", res.NewRows, res.TotalRows, res.Duration.Round(time.Millisecond))
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
