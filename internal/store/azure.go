package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"go.uber.org/zap"

	"github.com/mimiro-io/dataset-publisher/internal/conf"
)

type AzureStorage struct {
	logger *zap.SugaredLogger
	client *azblob.Client
}

func NewAzureStorage(logger *zap.SugaredLogger, env *conf.Env) (*AzureStorage, error) {
	l := logger.Named("azure")
	client, err := createClient(env.Storage.Azure)
	if err != nil {
		l.Errorf("Invalid credentials with error: %v", err)
		return nil, err
	}
	return &AzureStorage{logger: l, client: client}, nil
}

// createClient supports SAS tokens and shared key credentials.
func createClient(config conf.AzureConfig) (*azblob.Client, error) {
	accountURL := config.AccountURL
	if accountURL == "" {
		if config.AccountName == "" {
			return nil, fmt.Errorf("azure storage needs an account url or account name")
		}
		accountURL = fmt.Sprintf("https://%s.blob.core.windows.net/", config.AccountName)
	}
	if config.SAS != "" {
		return azblob.NewClientWithNoCredential(fmt.Sprintf("%s?%s", accountURL, strings.TrimPrefix(config.SAS, "?")), nil)
	}
	credential, err := azblob.NewSharedKeyCredential(config.AccountName, config.AccountKey)
	if err != nil {
		return nil, err
	}
	return azblob.NewClientWithSharedKeyCredential(accountURL, credential, nil)
}

func (azStorage *AzureStorage) Fetch(ctx context.Context, containerName string, blob string) (*LocalFile, error) {
	f, err := tempTarget(blob)
	if err != nil {
		return nil, err
	}
	n, err := azStorage.client.DownloadFile(ctx, containerName, blob, f, nil)
	if err == nil {
		azStorage.logger.Infof("read %v bytes total from azure blob %v", n, blob)
	}
	return finish(f, err)
}
