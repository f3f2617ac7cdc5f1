package conf

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// PublishFlags describes a job given on the command line.
type PublishFlags struct {
	JobFile       string `mapstructure:"job"`
	Domain        string `mapstructure:"domain"`
	DatasetID     string `mapstructure:"dataset"`
	File          string `mapstructure:"file"`
	Method        string `mapstructure:"method"`
	ControlFile   string `mapstructure:"control"`
	PublishViaFTP bool   `mapstructure:"ftp"`
	HasHeaderRow  bool   `mapstructure:"header"`
	DeletionFile  string `mapstructure:"deletions"`
	Schedule      string `mapstructure:"schedule"`
	DryRun        bool   `mapstructure:"dry-run"`
}

// BindFlags registers the job flags on fs and binds them into viper.
func BindFlags(fs *pflag.FlagSet) error {
	fs.String("job", "", "path or url of a job file, other job flags are ignored when set")
	fs.String("domain", "", "domain of the dataset service, eg. \"data.example.org\"")
	fs.String("dataset", "", "id of the dataset to publish to, eg. \"abcd-1234\"")
	fs.StringP("file", "f", "", "file to publish, a local path or an s3:// or azure:// location")
	fs.StringP("method", "m", "", "replace, upsert, append or delete")
	fs.StringP("control", "c", "", "path or url of the control file")
	fs.Bool("ftp", false, "publish through the ftp dropbox instead of the http api")
	fs.Bool("header", true, "the first row of the file holds the column names")
	fs.String("deletions", "", "file with row identifiers to delete before publishing")
	fs.String("schedule", "", "run the job repeatedly on this schedule, eg. \"@every 1h\"")
	fs.Bool("dry-run", false, "log the rows instead of sending them")
	return viper.BindPFlags(fs)
}

func readFlags() PublishFlags {
	flags := PublishFlags{HasHeaderRow: true}
	_ = viper.Unmarshal(&flags)
	return flags
}
