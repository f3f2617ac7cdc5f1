package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/bamzi/jobrunner"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mimiro-io/dataset-publisher/internal/conf"
	"github.com/mimiro-io/dataset-publisher/internal/controlfile"
	"github.com/mimiro-io/dataset-publisher/internal/dropbox"
	"github.com/mimiro-io/dataset-publisher/internal/job"
	"github.com/mimiro-io/dataset-publisher/internal/soda"
	"github.com/mimiro-io/dataset-publisher/internal/store"
	"github.com/mimiro-io/dataset-publisher/internal/upload"
)

func wire(options ...fx.Option) *fx.App {
	app := fx.New(
		fx.NopLogger,
		fx.Provide(
			conf.NewEnv,
			conf.NewStatsd,
			conf.NewLogger,
			conf.NewLoader,
			soda.NewClient,
			store.NewStorageEngine,
			store.NewConsoleStorage,
			upload.NewUploader,
			dropbox.NewClient,
			job.NewRunLog,
			job.NewRunner,
			newRegionResolver,
			newConnector,
			newPublisher,
			newFetcher,
			newDocumentLoader,
			newJob,
		),
		fx.Invoke(registerSchedule),
		fx.Options(options...),
	)
	return app
}

// Run publishes the job given on the command line and returns the process exit code. With a schedule
// it keeps publishing until interrupted.
func Run() int {
	if err := conf.BindFlags(pflag.CommandLine); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	pflag.Parse()

	var env *conf.Env
	var runner *job.Runner
	var j *job.Job
	app := wire(fx.Populate(&env, &runner, &j))
	if err := app.Err(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, job.ErrInvalidJob) {
			return 1
		}
		return 2
	}
	if env.Job.Schedule != "" {
		app.Run()
		return 0
	}
	return runner.Run(j).ExitCode()
}

// newJob builds the job from a job file when one is given, otherwise from the job flags.
func newJob(env *conf.Env, loader *conf.Loader) (*job.Job, error) {
	flags := env.Job
	if flags.JobFile != "" {
		j, err := job.LoadJobFile(loader, flags.JobFile)
		if err != nil {
			return nil, err
		}
		if j.Domain == "" {
			j.Domain = env.Domain
		}
		return j, nil
	}
	j := &job.Job{
		Domain:              env.Domain,
		DatasetID:           flags.DatasetID,
		FileToPublish:       flags.File,
		FileHasHeaderRow:    flags.HasHeaderRow,
		ControlFileLocation: flags.ControlFile,
		PublishViaFTP:       flags.PublishViaFTP,
		DeletionFile:        flags.DeletionFile,
	}
	if flags.Method != "" {
		method, err := controlfile.ParseAction(flags.Method)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", job.ErrInvalidJob, err)
		}
		j.PublishMethod = method
	}
	return j, nil
}

type scheduledJob struct {
	runner *job.Runner
	job    *job.Job
}

func (s *scheduledJob) Run() {
	s.runner.Run(s.job)
}

func registerSchedule(lc fx.Lifecycle, env *conf.Env, runner *job.Runner, j *job.Job, logger *zap.SugaredLogger) {
	schedule := env.Job.Schedule
	if schedule == "" {
		return
	}
	log := logger.Named("schedule")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			jobrunner.Start()
			if err := jobrunner.Schedule(schedule, &scheduledJob{runner: runner, job: j}); err != nil {
				jobrunner.Stop()
				return fmt.Errorf("invalid schedule %q: %w", schedule, err)
			}
			log.Infow("Scheduled publishing", "dataset", j.DatasetID, "schedule", schedule)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			jobrunner.Stop()
			log.Info("Stopped scheduled publishing")
			return nil
		},
	})
}
