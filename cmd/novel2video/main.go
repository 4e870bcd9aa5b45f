package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"novelstudio/internal/domain"
	"novelstudio/internal/generation"
	"novelstudio/internal/infra"
	"novelstudio/internal/jobclient"
	"novelstudio/internal/notice"
	"novelstudio/internal/storage"
)

const maxNovelBytes = 1 << 20

var errJobFailed = errors.New("generation did not complete")

type options struct {
	text   string
	file   string
	locale string
	out    string
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.text, "text", "", "novel text to convert")
	flag.StringVar(&opts.file, "file", "", "read the novel from this file (\"-\" for stdin)")
	flag.StringVar(&opts.locale, "locale", "", "language of progress notices (en, zh)")
	flag.StringVar(&opts.out, "out", "", "directory for generated artifacts (defaults to STORAGE_PATH)")
	flag.Parse()

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "novel2video: %v\n", err)
		os.Exit(2)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, &logger, opts); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn().Msg("novel2video: interrupted")
			os.Exit(130)
		}
		logger.Error().Err(err).Msg("novel2video: failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *infra.Config, logger *infra.Logger, opts options) error {
	logger = infra.OrDiscard(logger)
	novel, err := readNovel(opts)
	if err != nil {
		return err
	}
	outDir := opts.out
	if outDir == "" {
		outDir = cfg.StoragePath
	}
	store, err := storage.NewFileStore(outDir)
	if err != nil {
		return err
	}
	locale := opts.locale
	if locale == "" {
		locale = cfg.DefaultLocale
	}

	client, err := generation.NewClient(generation.Options{
		BaseURL:        cfg.BackendBaseURL,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	snapshots := make(chan jobclient.Snapshot, 32)
	ctrl, err := jobclient.NewController(jobclient.Options{
		Submitter: client,
		Poller:    jobclient.NewPoller(client, jobclient.PollerOptions{Interval: cfg.PollInterval, Logger: logger}),
		Notices:   notice.NewCatalog(),
		Locale:    locale,
		Logger:    logger,
		OnChange: func(s jobclient.Snapshot) {
			snapshots <- s
		},
	})
	if err != nil {
		return err
	}
	defer ctrl.Close()

	// An interrupt disposes the controller, stopping its timer.
	go func() {
		<-ctx.Done()
		ctrl.Close()
	}()

	jobID, err := ctrl.Submit(ctx, novel)
	if err != nil {
		if n := ctrl.Snapshot().Notice; n != nil {
			logger.Error().Str("notice", n.Message).Msg("novel2video: submission rejected")
		}
		return err
	}
	logger.Info().Str("job_id", jobID).Dur("poll_interval", cfg.PollInterval).Msg("novel2video: job submitted")

	job, err := follow(ctx, logger, snapshots)
	if err != nil {
		return err
	}
	if job.Result.Empty() {
		logger.Warn().Str("job_id", job.ID).Msg("novel2video: job completed without artifacts")
		return nil
	}

	writer := storage.NewArtifactWriter(store, cfg.UploadTimeout, logger)
	saved, err := writer.Save(ctx, job.ID, job.Result)
	if saved != nil {
		for _, key := range append(append([]string(nil), saved.Images...), saved.Panels, saved.Video) {
			if key == "" {
				continue
			}
			if path, perr := store.Path(key); perr == nil {
				fmt.Println(path)
			}
		}
	}
	if err != nil {
		return fmt.Errorf("save artifacts: %w", err)
	}
	return nil
}

// follow logs progress until the job completes or fails.
func follow(ctx context.Context, logger *infra.Logger, snapshots <-chan jobclient.Snapshot) (*domain.Job, error) {
	lastProgress, lastStatus := -1, domain.RemoteStatus("")
	started := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case snap := <-snapshots:
			switch snap.State {
			case domain.JobStatePolling:
				if snap.Job == nil {
					continue
				}
				if snap.Job.Progress != lastProgress || snap.Job.Status != lastStatus {
					lastProgress, lastStatus = snap.Job.Progress, snap.Job.Status
					logger.Info().
						Str("job_id", snap.Job.ID).
						Str("status", string(snap.Job.Status)).
						Int("progress", snap.Job.Progress).
						Msg("novel2video: progress")
				}
			case domain.JobStateCompleted:
				if snap.Notice != nil {
					logger.Info().Str("notice", snap.Notice.Message).Dur("elapsed", time.Since(started)).Msg("novel2video: done")
				}
				if snap.Job == nil {
					return &domain.Job{}, nil
				}
				return snap.Job, nil
			case domain.JobStateIdle:
				if snap.Notice != nil && snap.Notice.Level == notice.LevelError {
					return nil, fmt.Errorf("%w: %s", errJobFailed, snap.Notice.Message)
				}
			}
		}
	}
}

func readNovel(opts options) (string, error) {
	if text := strings.TrimSpace(opts.text); text != "" {
		return text, nil
	}
	var r io.Reader = os.Stdin
	if opts.file != "" && opts.file != "-" {
		f, err := os.Open(opts.file)
		if err != nil {
			return "", fmt.Errorf("open novel: %w", err)
		}
		defer f.Close()
		r = f
	}
	raw, err := io.ReadAll(io.LimitReader(r, maxNovelBytes))
	if err != nil {
		return "", fmt.Errorf("read novel: %w", err)
	}
	return string(raw), nil
}
