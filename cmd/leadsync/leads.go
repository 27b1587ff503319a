package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/leadsync/internal/config"
	"github.com/amishk599/leadsync/internal/export"
	"github.com/amishk599/leadsync/internal/model"
	"github.com/amishk599/leadsync/internal/store"
)

var (
	listSearch    string
	listUnapplied bool
	listLimit     int

	applyUndo bool

	referralName    string
	referralContact string
	referralClear   bool

	exportOutput    string
	exportUpload    bool
	exportUnapplied bool
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Manage stored job leads",
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored leads, newest first",
	RunE:  runLeadsList,
}

var leadsApplyCmd = &cobra.Command{
	Use:   "apply <id>",
	Short: "Mark a lead as applied",
	Args:  cobra.ExactArgs(1),
	RunE:  runLeadsApply,
}

var leadsReferralCmd = &cobra.Command{
	Use:   "referral <id>",
	Short: "Record who referred you for a lead",
	Args:  cobra.ExactArgs(1),
	RunE:  runLeadsReferral,
}

var leadsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export leads as CSV, optionally uploading over SFTP",
	RunE:  runLeadsExport,
}

func init() {
	leadsListCmd.Flags().StringVarP(&listSearch, "search", "s", "", "case-insensitive match on company or title")
	leadsListCmd.Flags().BoolVar(&listUnapplied, "unapplied", false, "only show leads not applied to yet")
	leadsListCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "maximum number of leads to show")

	leadsApplyCmd.Flags().BoolVar(&applyUndo, "undo", false, "mark the lead as not applied")

	leadsReferralCmd.Flags().StringVar(&referralName, "name", "", "referrer name")
	leadsReferralCmd.Flags().StringVar(&referralContact, "contact", "", "referrer contact (email, LinkedIn, ...)")
	leadsReferralCmd.Flags().BoolVar(&referralClear, "clear", false, "remove the referral")

	leadsExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "CSV file to write (default leads-YYYYMMDD.csv)")
	leadsExportCmd.Flags().BoolVar(&exportUpload, "upload", false, "upload the file to export.sftp after writing it")
	leadsExportCmd.Flags().BoolVar(&exportUnapplied, "unapplied", false, "only export leads not applied to yet")

	leadsCmd.AddCommand(leadsListCmd, leadsApplyCmd, leadsReferralCmd, leadsExportCmd)
	rootCmd.AddCommand(leadsCmd)
}

// withStore loads config, opens the configured store and runs fn with it.
func withStore(fn func(ctx context.Context, cfg *config.Config, st leadStore) error) error {
	logger := setupLogger(debug)
	if !debug {
		logger = discardLogger()
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Lead management always targets the real store.
	cfg.Sync.DryRun = false

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	return fn(ctx, cfg, st)
}

func runLeadsList(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, _ *config.Config, st leadStore) error {
		leads, err := st.List(ctx, model.ListFilter{
			Search:        listSearch,
			UnappliedOnly: listUnapplied,
			Limit:         listLimit,
		})
		if err != nil {
			return err
		}

		fmt.Printf("%-36s  %-18s %-34s %-18s %-7s %s\n", "ID", "Company", "Title", "Category", "Applied", "Added")
		fmt.Println(strings.Repeat("─", 130))
		for _, l := range leads {
			applied := "no"
			if l.Applied {
				applied = "yes"
			}
			if l.ReferralSecured {
				applied += "*"
			}
			fmt.Printf("%-36s  %-18s %-34s %-18s %-7s %s\n",
				l.ID,
				clip(l.CompanyName, 18),
				clip(l.JobTitle, 34),
				clip(string(l.Category), 18),
				applied,
				l.CreatedAt.Local().Format("Jan 02 15:04"),
			)
		}
		fmt.Printf("\n%d leads (* = referral secured)\n", len(leads))
		return nil
	})
}

func runLeadsApply(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, _ *config.Config, st leadStore) error {
		if err := st.SetApplied(ctx, args[0], !applyUndo); err != nil {
			return notFoundHint(err, args[0])
		}
		if applyUndo {
			fmt.Printf("lead %s marked as not applied\n", args[0])
		} else {
			fmt.Printf("lead %s marked as applied\n", args[0])
		}
		return nil
	})
}

func runLeadsReferral(cmd *cobra.Command, args []string) error {
	ref := model.Referral{Secured: true, Name: referralName, Contact: referralContact}
	if referralClear {
		ref = model.Referral{}
	} else if strings.TrimSpace(referralName) == "" {
		return fmt.Errorf("--name is required unless --clear is set")
	}

	return withStore(func(ctx context.Context, _ *config.Config, st leadStore) error {
		if err := st.SetReferral(ctx, args[0], ref); err != nil {
			return notFoundHint(err, args[0])
		}
		if referralClear {
			fmt.Printf("referral cleared for lead %s\n", args[0])
		} else {
			fmt.Printf("referral from %s recorded for lead %s\n", referralName, args[0])
		}
		return nil
	})
}

func runLeadsExport(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, cfg *config.Config, st leadStore) error {
		leads, err := store.ListAll(ctx, st, model.ListFilter{UnappliedOnly: exportUnapplied})
		if err != nil {
			return err
		}

		path := exportOutput
		if path == "" {
			path = export.FileName(time.Now())
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		if err := export.WriteCSV(f, leads); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close export file: %w", err)
		}
		fmt.Printf("wrote %d leads to %s\n", len(leads), path)

		if !exportUpload {
			return nil
		}
		sc := cfg.Export.SFTP
		remote, err := export.Upload(ctx, export.SFTPConfig{
			Host:                  sc.Host,
			Port:                  sc.Port,
			User:                  sc.User,
			Password:              sc.Password,
			KeyFile:               sc.KeyFile,
			KnownHostsFile:        sc.KnownHostsFile,
			InsecureIgnoreHostKey: sc.InsecureIgnoreHostKey,
			RemoteDir:             sc.RemoteDir,
		}, path, filepath.Base(path))
		if err != nil {
			return err
		}
		fmt.Printf("uploaded to %s:%s\n", sc.Host, remote)
		return nil
	})
}

func notFoundHint(err error, id string) error {
	if errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("no lead with id %s (see `leadsync leads list`)", id)
	}
	return err
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
