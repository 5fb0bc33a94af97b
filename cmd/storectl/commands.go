package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kctmenswear/storefront/internal/application/diagnostics"
	"github.com/kctmenswear/storefront/internal/infrastructure/config"
	"github.com/kctmenswear/storefront/internal/pkg/debounce"
)

// check builds a command that runs one diagnostics check
func check(use, short string, fn func(s *diagnostics.Service, ctx context.Context, w io.Writer) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(cmd, use, false, func(ctx context.Context, e *env, w io.Writer) error {
				return fn(e.svc, ctx, w)
			})
		},
	}
}

// runWithEnv opens the environment and runs fn through diagnostics.Run so
// failures are printed once
func runWithEnv(cmd *cobra.Command, name string, withStorage bool, fn func(ctx context.Context, e *env, w io.Writer) error) error {
	w := cmd.OutOrStdout()
	var e *env
	defer func() {
		if e != nil {
			e.Close()
		}
	}()

	err := diagnostics.Run(cmd.Context(), name, w, nil, func(ctx context.Context) error {
		var err error
		e, err = openEnv(ctx, withStorage)
		if err != nil {
			return err
		}
		return fn(ctx, e, w)
	})
	if err != nil {
		return reportedError{err: err}
	}
	return nil
}

var checkTablesCmd = check("check-tables",
	"Check that products_enhanced and products exist",
	(*diagnostics.Service).CheckTables)

var checkSubcategoriesCmd = check("check-subcategories",
	"Count enhanced products by category and subcategory",
	(*diagnostics.Service).CheckSubcategories)

var checkCustomerTableCmd = check("check-customer-table",
	"Show the customers table columns and profile fields",
	(*diagnostics.Service).CheckCustomerTable)

var checkVariantStructureCmd = check("check-variant-structure",
	"Show the product_variants columns and a sample row",
	(*diagnostics.Service).CheckVariantStructure)

var checkOrdersStructureCmd = check("check-orders-structure",
	"Show the orders columns and whether customer_id exists",
	(*diagnostics.Service).CheckOrdersStructure)

var checkSizesCmd = check("check-sizes",
	"Report how product sizes are stored",
	(*diagnostics.Service).CheckSizes)

var (
	exportOutput string
	exportUpload bool
)

var exportProductsCmd = &cobra.Command{
	Use:   "export-products",
	Short: "Export active products to CSV",
	Long: `Export every active product with its first variant and gallery images
to a CSV file and print a summary. With --upload the file is also stored
under exports/ in the configured object storage.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithEnv(cmd, "export-products", exportUpload, func(ctx context.Context, e *env, w io.Writer) error {
			_, err := e.svc.ExportProducts(ctx, w, diagnostics.ExportOptions{
				Path:   exportOutput,
				Upload: exportUpload,
			})
			return err
		})
	},
}

var setupStorageCmd = &cobra.Command{
	Use:   "setup-storage",
	Short: "Create the product-images bucket if it does not exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithEnv(cmd, "setup-storage", true, func(ctx context.Context, e *env, w io.Writer) error {
			return e.svc.SetupStorage(ctx, w)
		})
	},
}

var watchConfigCmd = &cobra.Command{
	Use:   "watch-config",
	Short: "Print the effective log level while the config file changes",
	Long: `Watch the config file and print the effective log level each time it
settles. Rapid successive writes are collapsed into one reload.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return watchConfig(ctx, cmd.OutOrStdout())
	},
}

func watchConfig(ctx context.Context, w io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	l, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	level := debounce.NewState(cfg.Log.Level, debounce.DefaultDelay)
	defer level.Stop()

	watcher, err := config.Watch(configPath, debounce.DefaultDelay, l.Logger, func(c *config.Config) {
		level.Set(c.Log.Level)
	})
	if err != nil {
		return err
	}
	defer watcher.Stop()

	fmt.Fprintf(w, "Watching %s (Ctrl+C to stop)\n", watcher.File())
	fmt.Fprintf(w, "Log level: %s\n", level.Debounced())
	for {
		select {
		case <-ctx.Done():
			return nil
		case lvl, ok := <-level.Changes():
			if !ok {
				return nil
			}
			l.SetLevel(lvl)
			fmt.Fprintf(w, "Log level: %s\n", l.Level())
		}
	}
}

func init() {
	exportProductsCmd.Flags().StringVarP(&exportOutput, "output", "o", diagnostics.DefaultExportPath, "CSV output path")
	exportProductsCmd.Flags().BoolVar(&exportUpload, "upload", false, "Upload the CSV to object storage")
}
