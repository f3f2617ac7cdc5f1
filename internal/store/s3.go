package store

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"go.uber.org/zap"

	"github.com/mimiro-io/dataset-publisher/internal/conf"
)

type S3Storage struct {
	logger     *zap.SugaredLogger
	downloader *s3manager.Downloader
}

func NewS3Storage(logger *zap.SugaredLogger, env *conf.Env) (*S3Storage, error) {
	downloader, err := initS3(env.Storage.S3)
	if err != nil {
		return nil, err
	}
	return &S3Storage{logger: logger.Named("s3"), downloader: downloader}, nil
}

func initS3(config conf.S3Config) (*s3manager.Downloader, error) {
	region := config.Region
	if region == "" {
		region = "eu-west-1"
	}
	if config.Endpoint != "" {
		if config.AccessKey == "" || config.SecretKey == "" {
			return nil, errors.New("s3 endpoint configured without access key and secret")
		}
		sess, err := session.NewSession(&aws.Config{
			Credentials:      credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, ""),
			S3ForcePathStyle: aws.Bool(true),
			Region:           aws.String(region),
			Endpoint:         aws.String(config.Endpoint),
		})
		if err != nil {
			return nil, err
		}
		return s3manager.NewDownloader(sess), nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, err
	}
	return s3manager.NewDownloader(sess), nil
}

func (s3s *S3Storage) Fetch(ctx context.Context, bucket string, key string) (*LocalFile, error) {
	f, err := tempTarget(key)
	if err != nil {
		return nil, err
	}
	n, err := s3s.downloader.DownloadWithContext(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		s3s.logger.Infof("read %v bytes total from s3 file %v", n, key)
	}
	return finish(f, err)
}
