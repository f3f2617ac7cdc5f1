//go:build integration
// +build integration

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/endpoints"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/elgohr/go-localstack"
	"github.com/franela/goblin"
	"github.com/labstack/echo/v4"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"go.uber.org/zap"

	"github.com/mimiro-io/dataset-publisher/internal/conf"
	"github.com/mimiro-io/dataset-publisher/internal/controlfile"
	"github.com/mimiro-io/dataset-publisher/internal/job"
	"github.com/mimiro-io/dataset-publisher/internal/soda"
	"github.com/mimiro-io/dataset-publisher/internal/store"
	"github.com/mimiro-io/dataset-publisher/internal/upload"
)

const treesCsv = "id,name\n1,oak\n2,ash\n3,elm\n"

func TestS3(t *testing.T) {
	g := goblin.Goblin(t)

	g.Describe("Publishing from s3", func() {
		var l *localstack.Instance
		var uploader *s3manager.Uploader
		var endpoint string
		var env *conf.Env
		var service *datasetService
		var server *httptest.Server
		g.Before(func() {
			l, _ = localstack.NewInstance()
			pool, _ := dockertest.NewPool("")
			containers, _ := pool.Client.ListContainers(docker.ListContainersOptions{All: false})
			endpoint = ""
			for _, c := range containers {
				if c.Image == "localstack/localstack:latest" {
					for _, p := range c.Ports {
						if p.PrivatePort == 4566 {
							endpoint = fmt.Sprintf("localhost:%v", p.PublicPort)
							t.Log("found localstack running on endpoint " + endpoint)
							break
						}
					}
					break
				}
			}

			if endpoint == "" {
				t.Log("Starting localstack")
				_ = l.Start()
				endpoint = l.Endpoint(localstack.S3)
			}
			awsSession, _ := session.NewSession(&aws.Config{
				Credentials:      credentials.NewStaticCredentials("not", "empty", ""),
				DisableSSL:       aws.Bool(true),
				Region:           aws.String(endpoints.UsWest1RegionID),
				Endpoint:         aws.String(endpoint),
				S3ForcePathStyle: aws.Bool(true),
			})
			s3Service := s3.New(awsSession)
			_, _ = s3Service.CreateBucket((&s3.CreateBucketInput{}).SetBucket("s3-test-bucket"))
			uploader = s3manager.NewUploader(awsSession)

			service = &datasetService{}
			server = service.start()
			env = &conf.Env{
				Logger:    zap.NewNop().Sugar(),
				Domain:    server.URL,
				ChunkSize: 2,
				Storage: conf.StorageConfig{S3: conf.S3Config{
					Region:    endpoints.UsWest1RegionID,
					Endpoint:  "http://" + endpoint,
					AccessKey: "not",
					SecretKey: "empty",
				}},
			}
		})
		g.After(func() {
			server.Close()
			_ = l.Stop()
		})
		g.It("Should fetch objects to a temporary file", func() {
			_, err := uploader.Upload(&s3manager.UploadInput{
				Bucket: aws.String("s3-test-bucket"),
				Key:    aws.String("exports/trees.csv"),
				Body:   strings.NewReader(treesCsv),
			})
			g.Assert(err).IsNil()

			engine := store.NewStorageEngine(env.Logger, env, &statsd.NoOpClient{})
			f, err := engine.Fetch(context.Background(), "s3://s3-test-bucket/exports/trees.csv")
			g.Assert(err).IsNil()
			content, _ := os.ReadFile(f.Path)
			g.Assert(string(content)).Equal(treesCsv)
			g.Assert(f.Temp).IsTrue()
			g.Assert(f.Remove()).IsNil()
			_, err = os.Stat(f.Path)
			g.Assert(os.IsNotExist(err)).IsTrue()
		})
		g.It("Should publish an s3 object to the dataset service", func() {
			_, err := uploader.Upload(&s3manager.UploadInput{
				Bucket: aws.String("s3-test-bucket"),
				Key:    aws.String("trees.csv"),
				Body:   strings.NewReader(treesCsv),
			})
			g.Assert(err).IsNil()

			o := newTestRunner(env).Run(&job.Job{
				Domain:           server.URL,
				DatasetID:        "abcd-1234",
				FileToPublish:    "s3://s3-test-bucket/trees.csv",
				PublishMethod:    controlfile.Upsert,
				FileHasHeaderRow: true,
			})
			g.Assert(o.Kind).Equal(job.Success)
			g.Assert(o.Created).Equal(3)
			g.Assert(len(service.received)).Equal(2)
		})
	})
}

// datasetService is a minimal stand-in for the dataset service http api.
type datasetService struct {
	received [][]map[string]interface{}
}

func (d *datasetService) start() *httptest.Server {
	e := echo.New()
	e.HideBanner = true
	e.GET("/api/views/abcd-1234.json", func(c echo.Context) error {
		return c.String(http.StatusOK, `{"id":"abcd-1234","name":"Trees","rowIdentifierColumnId":1,"columns":[
			{"id":1,"name":"Id","fieldName":"id","dataTypeName":"text"},
			{"id":2,"name":"Name","fieldName":"name","dataTypeName":"text"}]}`)
	})
	e.GET("/api/imports2.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, []string{"UTF-8"})
	})
	e.POST("/resource/abcd-1234.json", func(c echo.Context) error {
		var rows []map[string]interface{}
		if err := json.NewDecoder(c.Request().Body).Decode(&rows); err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}
		d.received = append(d.received, rows)
		return c.JSON(http.StatusOK, map[string]interface{}{"Rows Created": len(rows), "Rows Updated": 0, "Rows Deleted": 0, "Errors": 0})
	})
	return httptest.NewServer(e)
}

type testConnector struct {
	client *soda.Client
}

func (c *testConnector) Catalog(domain string) job.Catalog {
	return c.client.ForDomain(domain)
}

func (c *testConnector) Writer(domain string) upload.DatasetWriter {
	return c.client.ForDomain(domain)
}

func newTestRunner(env *conf.Env) *job.Runner {
	sd := &statsd.NoOpClient{}
	return job.NewRunner(env, &testConnector{client: soda.NewClient(env, env.Logger, sd)}, upload.NewUploader(env, env.Logger, sd),
		nil, store.NewStorageEngine(env.Logger, env, sd), conf.NewLoader(env), job.NewRunLog(env), env.Logger, sd)
}
