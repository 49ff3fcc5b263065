package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"chute/internal/batch"
	"chute/internal/config"
	"chute/internal/history"
	"chute/internal/logging"
	"chute/internal/preflight"
	"chute/internal/tasks"
	"chute/internal/textutil"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	var (
		taskName        string
		outputDir       string
		concurrency     int
		continueOnError bool
		noHistory       bool
	)

	cmd := &cobra.Command{
		Use:   "run [files or directories]",
		Short: "Process a batch of files through a task",
		Long: `Process a batch of files through a task with bounded concurrency.

Directories are walked recursively. While a run is active, SIGINT or
SIGTERM cancels it, SIGUSR1 pauses dispatch, and SIGUSR2 resumes it.
Paused runs let in-flight files finish; cancelled runs record every
remaining file as cancelled.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.Batch.Concurrency = concurrency
			}
			if cmd.Flags().Changed("continue-on-error") {
				cfg.Batch.ContinueOnError = continueOnError
			}
			if outputDir != "" {
				cfg.Paths.OutputDir = outputDir
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runBatch(cmd, cfg, taskName, args, !noHistory)
		},
	}

	cmd.Flags().StringVarP(&taskName, "task", "t", "gzip", "Task to apply to each file")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (default from config)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "n", 0, "Maximum files processed simultaneously")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", true, "Keep processing after a file fails")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Skip recording this run in history")

	return cmd
}

func runBatch(cmd *cobra.Command, cfg *config.Config, taskName string, args []string, recordHistory bool) error {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no regular files found in %v", args)
	}

	results, ok := preflight.Run(cfg.Paths.OutputDir, cfg.Preflight.MinFreeMiB)
	for _, result := range results {
		if !result.Passed {
			fmt.Fprintf(cmd.ErrOrStderr(), "preflight: %s: %s\n", result.Name, result.Detail)
		}
	}
	if !ok {
		return fmt.Errorf("preflight checks failed")
	}

	task, err := tasks.New(taskName, cfg.Paths.OutputDir)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	logger = logging.WithRun(logger, runID)

	render := newRunRenderer(len(files))
	queue, err := batch.New[tasks.Input, tasks.Output](batch.Config[tasks.Input, tasks.Output]{
		Concurrency:     cfg.Batch.Concurrency,
		ContinueOnError: cfg.Batch.ContinueOnError,
		OnItemStart: func(item *batch.Item[tasks.Input, tasks.Output]) {
			logger.Debug("file started",
				logging.String(logging.FieldItemID, item.ID),
				logging.String(logging.FieldTask, taskName),
			)
		},
		OnItemComplete: func(item *batch.Item[tasks.Input, tasks.Output]) {
			attrs := logging.Args(
				logging.String(logging.FieldItemID, item.ID),
				logging.String(logging.FieldStatus, string(item.Status)),
				logging.Duration("duration", item.Duration()),
			)
			switch item.Status {
			case batch.StatusError:
				logger.Warn("file failed", append(attrs, logging.String("error", item.ErrorMessage))...)
			default:
				logger.Debug("file settled", attrs...)
			}
		},
		OnProgress: render.update,
	})
	if err != nil {
		return err
	}

	for _, path := range files {
		input := tasks.Input{Path: path}
		if info, statErr := os.Stat(path); statErr == nil {
			input.Size = info.Size()
		}
		if err := queue.Add(path, filepath.Base(path), input); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	stopControl := watchControlSignals(queue)
	defer stopControl()

	logger.Info("run started",
		logging.String(logging.FieldTask, taskName),
		logging.Int("files", len(files)),
		logging.Int("concurrency", cfg.Batch.Concurrency),
	)
	started := time.Now()
	render.start()

	summary, err := queue.Process(ctx, func(ctx context.Context, in tasks.Input) (tasks.Output, error) {
		return task.Process(ctx, in)
	})
	render.stop()
	if err != nil {
		return err
	}
	finished := time.Now()

	logger.Info("run finished",
		logging.String(logging.FieldStatus, string(queue.State())),
		logging.Int("completed", summary.Completed),
		logging.Int("failed", summary.Failed),
		logging.Int("cancelled", summary.Cancelled),
		logging.Duration("duration", finished.Sub(started)),
	)
	printSummary(cmd, taskName, queue.State(), summary, finished.Sub(started))

	if recordHistory && cfg.History.Enabled {
		if err := archiveRun(cmd.Context(), cfg, runID, taskName, queue.State(), summary, started, finished); err != nil {
			logger.Warn("failed to record run history", logging.Error(err))
		}
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", summary.Failed, len(summary.Items))
	}
	return nil
}

// collectFiles expands the argument list into a sorted list of regular
// files, walking directories recursively and dropping duplicates.
func collectFiles(args []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string

	appendFile := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			if info.Mode().IsRegular() {
				appendFile(filepath.Clean(arg))
			}
			continue
		}
		err = filepath.WalkDir(arg, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.Type().IsRegular() {
				appendFile(filepath.Clean(path))
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

// watchControlSignals maps SIGUSR1/SIGUSR2 onto pause/resume for the
// lifetime of the run.
func watchControlSignals[T, R any](queue *batch.Queue[T, R]) (stop func()) {
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGUSR1, syscall.SIGUSR2)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case sig := <-signals:
				if sig == syscall.SIGUSR1 {
					queue.Pause()
				} else {
					queue.Resume()
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(signals)
		close(done)
	}
}

// runRenderer draws a live progress bar when stdout is a terminal and stays
// quiet otherwise.
type runRenderer struct {
	writer  progress.Writer
	tracker *progress.Tracker
}

func newRunRenderer(total int) *runRenderer {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return &runRenderer{}
	}
	pw := progress.NewWriter()
	pw.SetOutputWriter(os.Stdout)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(25)
	pw.SetUpdateFrequency(100 * time.Millisecond)

	tracker := &progress.Tracker{
		Message: "Processing files",
		Total:   int64(total),
		Units:   progress.UnitsDefault,
	}
	pw.AppendTracker(tracker)
	return &runRenderer{writer: pw, tracker: tracker}
}

func (r *runRenderer) start() {
	if r.writer != nil {
		go r.writer.Render()
	}
}

func (r *runRenderer) update(done, total int) {
	if r.tracker != nil {
		r.tracker.SetValue(int64(done))
	}
}

func (r *runRenderer) stop() {
	if r.writer == nil {
		return
	}
	r.tracker.MarkAsDone()
	r.writer.Stop()
	for r.writer.IsRenderInProgress() {
		time.Sleep(10 * time.Millisecond)
	}
}

func printSummary(cmd *cobra.Command, taskName string, state batch.RunState, summary *batch.Summary[tasks.Input, tasks.Output], elapsed time.Duration) {
	rows := make([][]string, 0, len(summary.Items))
	for _, item := range summary.Items {
		detail := ""
		switch item.Status {
		case batch.StatusCompleted:
			detail = item.Result.OutputPath
		case batch.StatusError:
			detail = item.ErrorMessage
		}
		rows = append(rows, []string{
			item.Name,
			textutil.StatusLabel(string(item.Status)),
			formatDuration(item.Duration()),
			detail,
		})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable(
		[]string{"File", "Status", "Duration", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	))
	fmt.Fprintf(out, "%s: %d completed, %d failed, %d cancelled (%s, %s)\n",
		taskName, summary.Completed, summary.Failed, summary.Cancelled,
		textutil.StatusLabel(string(state)), formatDuration(elapsed))
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
	}
	return d.Round(100 * time.Millisecond).String()
}

func archiveRun(ctx context.Context, cfg *config.Config, runID, taskName string, state batch.RunState, summary *batch.Summary[tasks.Input, tasks.Output], started, finished time.Time) error {
	store, err := history.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	run := history.Run{
		ID:         runID,
		Task:       taskName,
		StartedAt:  started,
		FinishedAt: finished,
		State:      string(state),
		Total:      len(summary.Items),
		Completed:  summary.Completed,
		Failed:     summary.Failed,
		Cancelled:  summary.Cancelled,
	}
	items := make([]history.RunItem, 0, len(summary.Items))
	for _, item := range summary.Items {
		items = append(items, history.RunItem{
			RunID:        runID,
			ItemID:       item.ID,
			Name:         item.Name,
			Status:       string(item.Status),
			ErrorMessage: item.ErrorMessage,
			DurationMS:   item.Duration().Milliseconds(),
		})
	}
	if err := store.RecordRun(ctx, run, items); err != nil {
		return err
	}
	return store.Prune(ctx, cfg.History.KeepRuns)
}
