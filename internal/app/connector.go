package app

import (
	"go.uber.org/zap"

	"github.com/mimiro-io/dataset-publisher/internal/conf"
	"github.com/mimiro-io/dataset-publisher/internal/dropbox"
	"github.com/mimiro-io/dataset-publisher/internal/job"
	"github.com/mimiro-io/dataset-publisher/internal/soda"
	"github.com/mimiro-io/dataset-publisher/internal/store"
	"github.com/mimiro-io/dataset-publisher/internal/upload"
)

// sodaConnector points the runner at the dataset service of a job's domain. Dry runs write to the
// console instead.
type sodaConnector struct {
	client  *soda.Client
	console *store.ConsoleStorage
	dryRun  bool
}

func newConnector(env *conf.Env, client *soda.Client, console *store.ConsoleStorage) job.Connector {
	return &sodaConnector{client: client, console: console, dryRun: env.DryRun}
}

func (c *sodaConnector) Catalog(domain string) job.Catalog {
	return c.client.ForDomain(domain)
}

func (c *sodaConnector) Writer(domain string) upload.DatasetWriter {
	if c.dryRun {
		return c.console
	}
	return c.client.ForDomain(domain)
}

type dryRunPublisher struct {
	logger *zap.SugaredLogger
}

func (p *dryRunPublisher) Publish(req dropbox.Request) (*dropbox.Status, error) {
	p.logger.Infow("Dry run, not sending to the ftp dropbox", "dataset", req.DatasetID, "file", req.DataFile,
		"control", string(req.ControlFile))
	return &dropbox.Status{Message: "dry run"}, nil
}

func newPublisher(env *conf.Env, client *dropbox.Client, logger *zap.SugaredLogger) job.Publisher {
	if env.DryRun {
		return &dryRunPublisher{logger: logger.Named("console-store")}
	}
	return client
}

func newRegionResolver(client *soda.Client) dropbox.RegionResolver {
	return client
}

func newFetcher(engine *store.StorageEngine) job.Fetcher {
	return engine
}

func newDocumentLoader(loader *conf.Loader) job.DocumentLoader {
	return loader
}
