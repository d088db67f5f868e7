package main

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"meetwork/internal/ai"
	"meetwork/internal/board"
	"meetwork/internal/config"
	"meetwork/internal/db"
	"meetwork/internal/jobs"
	"meetwork/internal/logging"
	"meetwork/internal/meeting"
	"meetwork/internal/notify"
	"meetwork/internal/processors"
	"meetwork/internal/storage"
)

// app holds everything a command needs. close releases connections opened
// while building it.
type app struct {
	cfg      config.Config
	log      *zap.SugaredLogger
	db       *gorm.DB
	registry *prometheus.Registry
	reaper   *jobs.Reaper
	worker   *jobs.Worker

	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.log.Sync()
}

// openDB is swapped in tests.
var openDB = db.Connect

// buildApp wires every dependency from cfg. On error, whatever was opened
// so far is closed again.
func buildApp(ctx context.Context, cfg config.Config, debug bool) (_ *app, err error) {
	log, err := logging.New(cfg.LogJSON, debug)
	if err != nil {
		return nil, errors.Wrap(err, "init logger")
	}
	a := &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	gdb, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "connect database")
	}
	if sqlDB, err := gdb.DB(); err == nil {
		a.closers = append(a.closers, func() { _ = sqlDB.Close() })
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		return nil, errors.Wrap(err, "migrate")
	}
	a.db = gdb

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := jobs.NewMetrics(a.registry)

	var store storage.Downloader
	switch cfg.StorageProvider {
	case "s3":
		s3, err := storage.NewS3(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, errors.Wrap(err, "init s3 storage")
		}
		store = s3
	default:
		store = &storage.Filesystem{Root: cfg.StorageRoot}
	}

	aiClient := ai.NewClient(ai.Config{
		BaseURL: cfg.AIBaseURL,
		APIKey:  cfg.AIAPIKey,
		Timeout: cfg.AITimeout,
		Logger:  log.Named("ai"),
	})

	meetings := &meeting.Repo{DB: gdb}

	var activity processors.ActivityToucher = &meeting.DBActivity{DB: gdb}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, errors.Wrap(err, "parse REDIS_URL")
		}
		rdb := redis.NewClient(opts)
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		activity = &meeting.RedisActivity{Client: rdb}
	}

	notifiers := notify.Fanout{&notify.DBNotifier{DB: gdb}}
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("meetwork-"+cfg.WorkerID))
		if err != nil {
			return nil, errors.Wrap(err, "connect nats")
		}
		a.closers = append(a.closers, nc.Close)
		notifiers = append(notifiers, &notify.NATSPublisher{Conn: nc, Prefix: cfg.NATSSubjectPrefix})
	}

	reg := jobs.NewRegistry()
	processors.Register(reg, processors.Deps{
		Meetings:   meetings,
		Storage:    store,
		Speech:     aiClient,
		Summarizer: aiClient,
		Cards: &ai.CardExtractor{
			Client:   aiClient,
			Meetings: meetings,
		},
		Boards:              &board.Repo{DB: gdb},
		Activity:            activity,
		MinTranscriptLength: cfg.MinTranscriptLength,
		Log:                 log.Named("processors"),
	})

	jobStore := jobs.NewStore(gdb)
	a.reaper = &jobs.Reaper{
		Store:     jobStore,
		Threshold: cfg.StaleThreshold,
		Log:       log.Named("reaper"),
		Metrics:   metrics,
	}
	a.worker = &jobs.Worker{
		ID:            cfg.WorkerID,
		Store:         jobStore,
		Reaper:        a.reaper,
		Registry:      reg,
		Emitter:       &jobs.Emitter{Notifier: notifiers, Log: log.Named("notify")},
		Metrics:       metrics,
		Log:           log.Named("scheduler"),
		PollInterval:  cfg.PollInterval,
		MaxConcurrent: cfg.MaxConcurrentJobs,
	}
	return a, nil
}
