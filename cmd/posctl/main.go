package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"fz-pos-api/internal/backend"
	"fz-pos-api/internal/config"
	"fz-pos-api/internal/logger"
	"fz-pos-api/internal/repository"
	"fz-pos-api/internal/scanner"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "posctl",
	Short: "Operator tools for the FZ point-of-sale service.",
	Long: `posctl splits raw scanner input into product codes, looks codes up in the
admin catalog, triggers QR code generation and summarizes the audit trail.

Backend and database settings come from the same environment variables as the API.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("loglevel")
		return logger.SetLogLevel(level)
	},
}

var segmentCmd = &cobra.Command{
	Use:   "segment [raw...]",
	Short: "Splits raw scanner input into product codes.",
	Long:  "Splits raw scanner input into product codes. Reads stdin when no argument is given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix, _ := cmd.Flags().GetString("prefix")

		raw := strings.Join(args, " ")
		if len(args) == 0 {
			b, err := readStdin()
			if err != nil {
				return err
			}
			raw = b
		}

		for _, code := range scanner.Segment(raw, prefix) {
			fmt.Println(code)
		}
		return nil
	},
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <code>...",
	Short: "Looks codes up in the admin catalog.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newBackendClient(cmd)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "CODE\tID\tSKU\tNAME\tAVAILABLE\tMATCH\t")
		for _, code := range args {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			products, err := client.SearchProducts(ctx, code)
			cancel()
			if err != nil {
				return fmt.Errorf("lookup %s: %w", code, err)
			}
			if len(products) == 0 {
				fmt.Fprintf(w, "%s\t-\t-\t-\t-\tnone\t\n", code)
				continue
			}
			for _, p := range products {
				match := "partial"
				if strings.EqualFold(p.SKU, code) || strings.EqualFold(p.QRCode, code) {
					match = "exact"
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\t%s\t\n", code, p.ID, p.SKU, p.Name, p.Available(), match)
			}
		}
		return w.Flush()
	},
}

var generateQRCmd = &cobra.Command{
	Use:   "generate-qr",
	Short: "Assigns QR codes to products that have none.",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newBackendClient(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := client.GenerateQR(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Generated QR codes for %d products\n", n)
		return nil
	},
}

var auditStatsCmd = &cobra.Command{
	Use:   "audit-stats",
	Short: "Prints a summary of the audit trail.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if dbPath, _ := cmd.Flags().GetString("dbpath"); dbPath != "" {
			cfg.AuditDB.Type = "sqlite"
			cfg.AuditDB.Path = dbPath
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if cfg.AuditDB.Type == "sqlite" {
			if _, err := os.Stat(cfg.AuditDB.Path); err != nil {
				return fmt.Errorf("database file not found: %s", cfg.AuditDB.Path)
			}
		}
		repo, err := repository.Open(ctx, &cfg.AuditDB)
		if err != nil {
			return err
		}
		defer repo.Close()

		stats, err := repo.GetStats(ctx)
		if err != nil {
			return err
		}
		if stats.Total == 0 {
			fmt.Println("The audit trail is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "ACTION\tENTRIES\t")
		for action, n := range stats.ByAction {
			fmt.Fprintf(w, "%s\t%d\t\n", action, n)
		}
		fmt.Fprintln(w, " \t \t")
		fmt.Fprintf(w, "TOTAL\t%d\t\n", stats.Total)
		fmt.Fprintf(w, "SESSIONS\t%d\t\n", stats.Sessions)
		return w.Flush()
	},
}

func newBackendClient(cmd *cobra.Command) (*backend.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if baseURL, _ := cmd.Flags().GetString("base-url"); baseURL != "" {
		cfg.Backend.BaseURL = baseURL
	}
	if token, _ := cmd.Flags().GetString("token"); token != "" {
		cfg.Backend.Token = token
	}
	return backend.New(cfg.Backend), nil
}

func readStdin() (string, error) {
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(b), nil
}

func init() {
	rootCmd.PersistentFlags().StringP("loglevel", "l", "warn", "Set log level. Available: debug, info, warn, error, fatal")

	segmentCmd.Flags().String("prefix", "FZ-", "Product code prefix")

	for _, c := range []*cobra.Command{lookupCmd, generateQRCmd} {
		c.Flags().String("base-url", "", "Admin backend base URL (overrides BACKEND_BASE_URL)")
		c.Flags().String("token", "", "Admin backend bearer token (overrides BACKEND_TOKEN)")
	}

	auditStatsCmd.Flags().String("dbpath", "", "SQLite audit database path (overrides AUDIT_DB_*)")

	rootCmd.AddCommand(segmentCmd, lookupCmd, generateQRCmd, auditStatsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
