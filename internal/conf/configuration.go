package conf

// StorageConfig holds the connection settings for source files kept in object storage.
type StorageConfig struct {
	S3    S3Config
	Azure AzureConfig
}

type S3Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type AzureConfig struct {
	// AccountURL is the blob service url, eg. https://account.blob.core.windows.net
	AccountURL  string
	AccountName string
	AccountKey  string
	SAS         string
}
