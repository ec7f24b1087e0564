package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"freelanceflow/internal/app"
	"freelanceflow/internal/config"
	"freelanceflow/internal/ff"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an FFApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "TrialStatus", "BackupPush").
func newApp(operation string) (*app.FFApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewFFApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "ffctl",
	Short:        "Administer the freelanceflow data store",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Host ID:   %s\n", cfg.HostID)
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Database:  %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Legacy:    %s\n", cfg.Database.LegacyPath)
		fmt.Printf("License:   %s (timeout %s)\n", cfg.License.Endpoint, cfg.License.Timeout())
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:     %s (%s)\n", v.Name, v.Type)
		}
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the database file",
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or upgrade the schema and import legacy data",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DatabaseInit")
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Println("Schema is up to date.")
		if r := a.LegacyReport(); r != nil {
			fmt.Printf("Legacy import: clients %d new/%d existing, projects %d new/%d existing/%d without client, time entries %d new/%d existing\n",
				r.ClientsInserted, r.ClientsIgnored,
				r.ProjectsInserted, r.ProjectsIgnored, r.ProjectsSkipped,
				r.TimeEntriesInserted, r.TimeEntriesIgnored)
		}
		return nil
	},
}

var dbExportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Write a copy of the database file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DatabaseExport")
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.ExportDatabase(args[0])
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		fmt.Printf("Exported %d bytes to %s\n", n, args[0])
		return nil
	},
}

var dbImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Replace the database file with FILE",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := confirm(cmd, "This replaces all local data."); err != nil {
			return err
		}

		a, err := newApp("DatabaseImport")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ImportDatabase(args[0]); err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		fmt.Printf("Imported %s\n", args[0])
		return nil
	},
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the database file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := confirm(cmd, "This deletes all local data."); err != nil {
			return err
		}

		a, err := newApp("DatabaseReset")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().DeleteDatabase(); err != nil {
			return fmt.Errorf("reset failed: %w", err)
		}
		fmt.Println("Database deleted.")
		return nil
	},
}

// data command
var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Dump or load the whole dataset as JSON or YAML",
}

var dataDumpCmd = &cobra.Command{
	Use:   "dump FILE",
	Short: "Write every record to FILE (.json, .yaml or .yml)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DataDump")
		if err != nil {
			return err
		}
		defer a.Close()

		agg, err := a.DumpData(args[0])
		if err != nil {
			return fmt.Errorf("dump failed: %w", err)
		}
		fmt.Printf("Dumped %d clients, %d projects, %d time entries, %d invoices, %d expenses and %d recurring invoices\n",
			len(agg.Clients), len(agg.Projects), len(agg.TimeEntries),
			len(agg.Invoices), len(agg.Expenses), len(agg.RecurringInvoices))
		return nil
	},
}

var dataLoadCmd = &cobra.Command{
	Use:   "load FILE",
	Short: "Replace every record with the contents of FILE",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := confirm(cmd, "This replaces all local records."); err != nil {
			return err
		}

		a, err := newApp("DataLoad")
		if err != nil {
			return err
		}
		defer a.Close()

		agg, err := a.LoadData(args[0])
		if err != nil {
			return fmt.Errorf("load failed: %w", err)
		}
		fmt.Printf("Loaded %d clients and %d projects\n", len(agg.Clients), len(agg.Projects))
		return nil
	},
}

// trial command
var trialCmd = &cobra.Command{
	Use:   "trial",
	Short: "Inspect the trial period",
}

var trialStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the trial start date and days remaining",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("TrialStatus")
		if err != nil {
			return err
		}
		defer a.Close()

		date, ok, err := a.Service().GetTrialStartDate()
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Trial not started.")
			return nil
		}

		days, err := a.Service().CheckTrialStatus()
		if err != nil {
			return err
		}
		if days <= 0 {
			fmt.Printf("Trial started %s, expired.\n", date)
			return nil
		}
		fmt.Printf("Trial started %s, %d day(s) remaining.\n", date, days)
		return nil
	},
}

var trialStartCmd = &cobra.Command{
	Use:   "start [YYYY-MM-DD]",
	Short: "Record the trial start (today by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("TrialStart")
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 1 {
			if err := a.Service().SetTrialStartDate(args[0]); err != nil {
				if errors.Is(err, ff.ErrConflict) {
					return fmt.Errorf("trial already started")
				}
				return err
			}
			fmt.Printf("Trial started %s\n", args[0])
			return nil
		}

		date, err := a.Service().StartTrialIfNeeded()
		if err != nil {
			return err
		}
		fmt.Printf("Trial started %s\n", date)
		return nil
	},
}

// license command
var licenseCmd = &cobra.Command{
	Use:   "license",
	Short: "Manage the license",
}

var licenseActivateCmd = &cobra.Command{
	Use:   "activate KEY",
	Short: "Activate a license key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("LicenseActivate")
		if err != nil {
			return err
		}
		defer a.Close()

		ok, err := a.Service().ActivateLicense(context.Background(), args[0])
		switch {
		case errors.Is(err, ff.ErrInvalidLicense):
			return fmt.Errorf("invalid or inactive license key")
		case err != nil:
			return err
		case !ok:
			return fmt.Errorf("license was not activated")
		}
		fmt.Println("License activated.")
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Encrypted backups of the database file",
}

var backupKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the backup key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("BackupKeygen")
		if err != nil {
			return err
		}
		defer a.Close()

		enc, err := a.Encryptor()
		if err != nil {
			return err
		}
		passphrase, err := readNewPassphrase()
		if err != nil {
			return err
		}
		if err := enc.Setup(passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		fmt.Println("Backup keys created.")
		return nil
	},
}

var backupPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Encrypt the database and upload it to the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("BackupPush")
		if err != nil {
			return err
		}
		defer a.Close()

		backups, err := a.Backups()
		if err != nil {
			return err
		}
		version, err := backups.Push()
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		fmt.Printf("Pushed backup version %d\n", version)
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Download the latest backup and replace the database file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := confirm(cmd, "This replaces all local data with the latest backup."); err != nil {
			return err
		}

		a, err := newApp("BackupRestore")
		if err != nil {
			return err
		}
		defer a.Close()

		backups, err := a.Backups()
		if err != nil {
			return err
		}
		passphrase, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		version, err := backups.Restore(passphrase)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		fmt.Printf("Restored backup version %d\n", version)
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// db subcommands
	dbCmd.AddCommand(dbInitCmd)
	dbCmd.AddCommand(dbExportCmd)
	dbCmd.AddCommand(dbImportCmd)
	dbCmd.AddCommand(dbResetCmd)

	// data subcommands
	dataCmd.AddCommand(dataDumpCmd)
	dataCmd.AddCommand(dataLoadCmd)

	trialCmd.AddCommand(trialStatusCmd)
	trialCmd.AddCommand(trialStartCmd)

	licenseCmd.AddCommand(licenseActivateCmd)

	backupCmd.AddCommand(backupKeygenCmd)
	backupCmd.AddCommand(backupPushCmd)
	backupCmd.AddCommand(backupRestoreCmd)

	for _, c := range []*cobra.Command{dbImportCmd, dbResetCmd, dataLoadCmd, backupRestoreCmd} {
		c.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	}

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(dataCmd)
	rootCmd.AddCommand(trialCmd)
	rootCmd.AddCommand(licenseCmd)
	rootCmd.AddCommand(backupCmd)
}
