package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/chmdznr/fieldsync/internal/config"
	"github.com/chmdznr/fieldsync/internal/db"
	"github.com/chmdznr/fieldsync/internal/drafts"
	"github.com/chmdznr/fieldsync/internal/export"
	"github.com/chmdznr/fieldsync/internal/formschema"
	"github.com/chmdznr/fieldsync/internal/logging"
	"github.com/chmdznr/fieldsync/internal/photos"
	"github.com/chmdznr/fieldsync/internal/remote"
	"github.com/chmdznr/fieldsync/internal/sync"
	"github.com/chmdznr/fieldsync/pkg/models"
	"github.com/chmdznr/fieldsync/pkg/utils"
	"github.com/chmdznr/fieldsync/pkg/version"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"v"},
		Usage:   "print the version",
	}

	return &cli.App{
		Name:                      "fieldsync",
		Usage:                     "Offline inspection reports: drafts on this device, synced when online",
		Version:                   version.String(),
		EnableBashCompletion:      true,
		DisableSliceFlagSeparator: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				Value:   "fieldsync.yaml",
				EnvVars: []string{"FIELDSYNC_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "Path to the local draft database (overrides config)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error (overrides config)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "version",
				Usage: "Print detailed version information",
				Action: func(c *cli.Context) error {
					fmt.Printf("Version:    %s\n", version.Version)
					fmt.Printf("Git commit: %s\n", version.GitCommit)
					fmt.Printf("Built:      %s\n", version.BuildTime)
					return nil
				},
			},
			{
				Name:  "config",
				Usage: "Manage the configuration file",
				Subcommands: []*cli.Command{
					{
						Name:  "init",
						Usage: "Write a configuration file with the default settings",
						Flags: []cli.Flag{
							&cli.BoolFlag{
								Name:  "force",
								Usage: "Overwrite an existing file",
							},
						},
						Action: initConfig,
					},
				},
			},
			{
				Name:  "form",
				Usage: "Work with inspection form definitions",
				Subcommands: []*cli.Command{
					{
						Name:  "validate",
						Usage: "Check a form definition and list its questions",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "file",
								Usage:    "Form definition (YAML or JSON)",
								Required: true,
							},
						},
						Action: validateForm,
					},
				},
			},
			{
				Name:  "draft",
				Usage: "Save a new report as a local draft",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "form",
						Usage:    "Form definition (YAML or JSON)",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:    "answer",
						Aliases: []string{"a"},
						Usage:   "Answer as question=value (repeatable)",
					},
					&cli.StringSliceFlag{
						Name:    "photo",
						Aliases: []string{"p"},
						Usage:   "Photo as question=path[@lat,lng] (repeatable)",
					},
				},
				Action: createDraft,
			},
			{
				Name:   "pending",
				Usage:  "List reports waiting to be synced",
				Action: listPending,
			},
			{
				Name:   "status",
				Usage:  "Show local store status",
				Action: showStatus,
			},
			{
				Name:  "sync",
				Usage: "Send pending reports to the remote store",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of reports submitted in parallel (overrides config)",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Time limit per report (overrides config)",
					},
					&cli.BoolFlag{
						Name:  "interactive",
						Usage: "Press q or Esc to stop after the reports in flight",
					},
				},
				Action: startSync,
			},
			{
				Name:  "export",
				Usage: "Write every stored report to a spreadsheet",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "out",
						Usage:    "Output .xlsx file",
						Required: true,
					},
				},
				Action: exportRecords,
			},
		},
	}
}

// appEnv is what every store-backed command needs
type appEnv struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *db.DB
	store  *drafts.Store
}

func openEnv(c *cli.Context) (*appEnv, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return nil, err
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	return &appEnv{
		cfg:    cfg,
		logger: logger,
		db:     database,
		store:  drafts.NewStore(database, logger),
	}, nil
}

func (e *appEnv) Close() {
	if err := e.db.Close(); err != nil {
		e.logger.Warn("failed to close database", zap.Error(err))
	}
	_ = e.logger.Sync()
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("db") {
		cfg.Database.Path = c.String("db")
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	return cfg, nil
}

// initConfig writes the defaults, with environment overrides applied, to
// the --config path.
func initConfig(c *cli.Context) error {
	path := c.String("config")
	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", path)
	return nil
}

func validateForm(c *cli.Context) error {
	form, err := formschema.Load(c.String("file"))
	if err != nil {
		return err
	}

	fmt.Printf("Form %s: %s\n", form.ID, form.Title)
	total := 0
	for _, section := range form.Sections {
		fmt.Printf("\n%s\n", section.Title)
		for _, q := range section.Questions {
			marker := " "
			if q.Required {
				marker = "*"
			}
			fmt.Printf(" %s %-24s %-16s %s\n", marker, q.ID, q.Type, q.Text)
			total++
		}
	}
	fmt.Printf("\n%d sections, %d questions (* required)\n", len(form.Sections), total)
	return nil
}

// createDraft validates the answers, uploads any photos and appends the
// draft to the local store.
func createDraft(c *cli.Context) error {
	form, err := formschema.Load(c.String("form"))
	if err != nil {
		return err
	}
	answers, err := parseAnswers(c.StringSlice("answer"))
	if err != nil {
		return err
	}
	if err := formschema.ValidateAnswers(form, answers); err != nil {
		return fmt.Errorf("draft not saved:\n%w", err)
	}

	photoFlags := make([]photoFlag, 0, len(c.StringSlice("photo")))
	for _, raw := range c.StringSlice("photo") {
		pf, err := parsePhotoFlag(raw)
		if err != nil {
			return err
		}
		if _, ok := form.Question(pf.Question); !ok {
			return fmt.Errorf("photo for unknown question %q", pf.Question)
		}
		photoFlags = append(photoFlags, pf)
	}

	env, err := openEnv(c)
	if err != nil {
		return err
	}
	defer env.Close()

	formID := string(form.ID)
	attached := map[string][]models.Photo{}
	if len(photoFlags) > 0 {
		if !env.cfg.Storage.Enabled() {
			return fmt.Errorf("photos given but storage.endpoint is not configured")
		}
		client, err := photos.NewMinioClient(photos.StorageConfig{
			Endpoint:  env.cfg.Storage.Endpoint,
			AccessKey: env.cfg.Storage.AccessKey,
			SecretKey: env.cfg.Storage.SecretKey,
			Bucket:    env.cfg.Storage.Bucket,
			Region:    env.cfg.Storage.Region,
			Secure:    env.cfg.Storage.Secure,
		})
		if err != nil {
			return err
		}
		uploader := photos.NewUploader(client, env.cfg.Storage.Bucket, env.logger)
		for _, pf := range photoFlags {
			photo, err := uploader.Upload(c.Context, formID, pf.Question, pf.Path, pf.Coordinates)
			if err != nil {
				return err
			}
			attached[pf.Question] = append(attached[pf.Question], photo)
		}
	}

	record := drafts.NewDraft(formID, form.Title, answers, attached, time.Now())
	if err := env.store.Append(c.Context, record); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}

	fmt.Printf("Draft %s saved (%d answers, %d photos)\n", record.ID, len(answers), len(photoFlags))
	return nil
}

func listPending(c *cli.Context) error {
	env, err := openEnv(c)
	if err != nil {
		return err
	}
	defer env.Close()

	pending := drafts.FilterPending(env.store.LoadAll(c.Context))
	if len(pending) == 0 {
		fmt.Println("No pending reports")
		return nil
	}
	for _, r := range pending {
		fmt.Printf("%-28s %-24s %s  %s\n", r.ID, drafts.ISOTimestamp(r.CreatedAt), r.Status, r.FormTitle)
	}
	fmt.Printf("\n%d pending reports\n", len(pending))
	return nil
}

// showStatus shows how many reports are stored and how many still wait
// for a sync.
func showStatus(c *cli.Context) error {
	env, err := openEnv(c)
	if err != nil {
		return err
	}
	defer env.Close()

	stats := drafts.Stats(env.store.LoadAll(c.Context))

	fmt.Printf("Database: %s\n", env.db.Path())
	fmt.Printf("Total Reports: %d (Photos: %d)\n", stats.TotalRecords, stats.TotalPhotos)
	fmt.Printf("Synced: %d\n", stats.SyncedRecords)
	fmt.Printf("Pending: %d (Photos: %d)\n", stats.DraftRecords, stats.DraftPhotos)
	if !stats.OldestDraft.IsZero() {
		age := time.Since(stats.OldestDraft).Truncate(time.Second)
		fmt.Printf("Oldest Pending: %s (%s ago)\n", drafts.ISOTimestamp(stats.OldestDraft), utils.FormatDuration(age))
	}
	if stats.TotalRecords > 0 {
		progress := float64(stats.SyncedRecords) / float64(stats.TotalRecords) * 100
		fmt.Printf("Progress: %.2f%%\n", progress)
	}
	return nil
}

func startSync(c *cli.Context) error {
	env, err := openEnv(c)
	if err != nil {
		return err
	}
	defer env.Close()

	if c.IsSet("workers") {
		env.cfg.Sync.Workers = c.Int("workers")
	}
	if c.IsSet("timeout") {
		env.cfg.Sync.Timeout = c.Duration("timeout").String()
	}
	if err := env.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	submitter, closeSubmitter, err := newSubmitter(env.cfg.Remote)
	if err != nil {
		return err
	}
	defer closeSubmitter()

	syncerConfig := sync.SyncerConfig{
		ExecutorConfig: sync.ExecutorConfig{
			Workers: env.cfg.Sync.Workers,
			Timeout: env.cfg.SyncTimeout(),
		},
		Progress: os.Stdout,
	}
	syncer, err := sync.NewSyncer(env.store, submitter, &syncerConfig, env.logger)
	if err != nil {
		return fmt.Errorf("failed to create syncer: %v", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()
	if c.Bool("interactive") {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		stopKeys, err := listenForCancel(cancel)
		if err != nil {
			return fmt.Errorf("failed to read keyboard: %w", err)
		}
		defer stopKeys()
		fmt.Println("Press q or Esc to stop after the reports in flight")
	}

	summary, err := syncer.Run(ctx)
	if err != nil {
		if errors.Is(err, sync.ErrPersist) && summary.Succeeded > 0 {
			fmt.Printf("%d reports reached the server but could not be marked as synced locally\n", summary.Succeeded)
		}
		return err
	}

	fmt.Println(summary)
	if len(summary.FailedIDs) > 0 {
		fmt.Println("Failed reports:")
		for _, id := range summary.FailedIDs {
			fmt.Printf("- %s\n", id)
		}
	}
	return nil
}

func exportRecords(c *cli.Context) error {
	env, err := openEnv(c)
	if err != nil {
		return err
	}
	defer env.Close()

	out := c.String("out")
	n, err := export.WriteXLSX(c.Context, env.store, out)
	if err != nil {
		return err
	}
	fmt.Printf("Exported %d reports to %s\n", n, out)
	return nil
}

// newSubmitter builds the remote store selected by cfg. The returned
// close function is always safe to call.
func newSubmitter(cfg config.RemoteConfig) (sync.Submitter, func(), error) {
	switch cfg.Kind {
	case config.RemoteREST:
		s, err := remote.NewRESTSubmitter(remote.RESTOptions{
			BaseURL: cfg.URL,
			APIKey:  cfg.APIKey,
			Token:   cfg.Token,
			Table:   cfg.Table,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case config.RemotePostgres:
		s, err := remote.NewPostgresSubmitter(cfg.DSN, cfg.Table)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown remote kind %q", cfg.Kind)
	}
}
