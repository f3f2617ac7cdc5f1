package conf

import (
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Env struct {
	Logger          *zap.SugaredLogger
	Env             string
	ServiceName     string
	LogLevel        string
	StatsdAgentHost string
	Domain          string
	Username        string
	Password        string
	AppToken        string
	HTTPTimeout     time.Duration
	HTTPRetryCount  int
	// ChunkSize is the number of rows per HTTP request, 0 sends everything at once.
	ChunkSize int
	// ChunkingThreshold is the file size in bytes below which files are sent in one request.
	ChunkingThreshold int64
	Ftp               FtpConfig
	Storage           StorageConfig
	RunLog            string
	DryRun            bool
	Job               PublishFlags
}

type FtpConfig struct {
	ProviderDomain  string
	ControlPort     int
	PollInterval    time.Duration
	MaxPollFailures int
	RootMarker      string
	DialTimeout     time.Duration
}

func setDefaults() {
	viper.SetDefault("ENV", "local")
	viper.SetDefault("SERVICE_NAME", "dataset-publisher")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("HTTP_TIMEOUT", "120s")
	viper.SetDefault("HTTP_RETRY_COUNT", 3)
	viper.SetDefault("CHUNK_SIZE", 10000)
	viper.SetDefault("CHUNKING_THRESHOLD_MB", 10)
	viper.SetDefault("FTP_PROVIDER_DOMAIN", "socrata.net")
	viper.SetDefault("FTP_CONTROL_PORT", 22222)
	viper.SetDefault("FTP_POLL_INTERVAL", "1s")
	viper.SetDefault("FTP_MAX_POLL_FAILURES", 5)
	viper.SetDefault("FTP_ROOT_MARKER", "SocrataDatasyncRootMarker")
	viper.SetDefault("FTP_DIAL_TIMEOUT", "30s")
	viper.SetDefault("AWS_REGION", "eu-west-1")
}

// NewEnv reads configuration from the environment and from command line flags bound with BindFlags.
// Flags win over environment variables.
func NewEnv() *Env {
	setDefaults()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	env := &Env{
		Env:             viper.GetString("ENV"),
		ServiceName:     viper.GetString("SERVICE_NAME"),
		LogLevel:        viper.GetString("LOG_LEVEL"),
		StatsdAgentHost: viper.GetString("STATSD_AGENT_HOST"),
		Domain:          viper.GetString("DOMAIN"),
		Username:        viper.GetString("USERNAME"),
		Password:        viper.GetString("PASSWORD"),
		AppToken:        viper.GetString("APP_TOKEN"),
		HTTPTimeout:     cast.ToDuration(viper.GetString("HTTP_TIMEOUT")),
		HTTPRetryCount:  viper.GetInt("HTTP_RETRY_COUNT"),
		ChunkSize:       viper.GetInt("CHUNK_SIZE"),
		Ftp: FtpConfig{
			ProviderDomain:  viper.GetString("FTP_PROVIDER_DOMAIN"),
			ControlPort:     viper.GetInt("FTP_CONTROL_PORT"),
			PollInterval:    cast.ToDuration(viper.GetString("FTP_POLL_INTERVAL")),
			MaxPollFailures: viper.GetInt("FTP_MAX_POLL_FAILURES"),
			RootMarker:      viper.GetString("FTP_ROOT_MARKER"),
			DialTimeout:     cast.ToDuration(viper.GetString("FTP_DIAL_TIMEOUT")),
		},
		Storage: StorageConfig{
			S3: S3Config{
				Region:    viper.GetString("AWS_REGION"),
				Endpoint:  viper.GetString("S3_ENDPOINT"),
				AccessKey: viper.GetString("S3_ACCESS_KEY"),
				SecretKey: viper.GetString("S3_SECRET_KEY"),
			},
			Azure: AzureConfig{
				AccountURL:  viper.GetString("AZURE_ACCOUNT_URL"),
				AccountName: viper.GetString("AZURE_ACCOUNT_NAME"),
				AccountKey:  viper.GetString("AZURE_ACCOUNT_KEY"),
				SAS:         viper.GetString("AZURE_SAS"),
			},
		},
		RunLog: viper.GetString("RUN_LOG"),
		DryRun: viper.GetBool("DRY_RUN"),
		Job:    readFlags(),
	}
	env.ChunkingThreshold = cast.ToInt64(viper.GetFloat64("CHUNKING_THRESHOLD_MB") * 1024 * 1024)
	if env.Job.Domain != "" {
		env.Domain = env.Job.Domain
	}
	if env.Job.DryRun {
		env.DryRun = true
	}
	env.Logger = newLogger(env.Env, env.LogLevel).Named(env.ServiceName)
	return env
}
