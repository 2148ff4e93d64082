// Package cli implements the metalensctl command tree. It calls the
// extraction layer directly; no running API server is required.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/metalens/metalens/internal/metastore"
)

var (
	flagLocal        bool
	flagFormat       string
	flagEndpoint     string
	flagRegion       string
	flagAccessKey    string
	flagSecretKey    string
	flagSessionToken string
	flagUseSSL       bool
	flagOutput       string
	flagVerbose      bool
)

var RootCmd = &cobra.Command{
	Use:   "metalensctl",
	Short: "Inspect lakehouse table metadata",
	Long: `metalensctl extracts a normalized metadata summary (schema, partitions,
properties, statistics, version history, sample rows) from Parquet, Delta
Lake, Iceberg and Hudi tables on local disk or in an object store.`,
	SilenceUsage: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.BoolVar(&flagLocal, "local", false, "treat the location as a local path")
	flags.StringVar(&flagFormat, "format", "", "table format (parquet|delta|iceberg|hudi); detected from the location when empty")
	flags.StringVar(&flagEndpoint, "endpoint", "", "object store endpoint (default s3.amazonaws.com)")
	flags.StringVar(&flagRegion, "region", "", "object store region")
	flags.StringVar(&flagAccessKey, "access-key", "", "object store access key")
	flags.StringVar(&flagSecretKey, "secret-key", "", "object store secret key")
	flags.StringVar(&flagSessionToken, "session-token", "", "object store session token")
	flags.BoolVar(&flagUseSSL, "use-ssl", true, "use TLS for object store access")
	flags.StringVarP(&flagOutput, "output", "o", "table", "output format (table|json)")
	flags.BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	viper.SetEnvPrefix("METALENS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlag("endpoint", flags.Lookup("endpoint"))
	_ = viper.BindPFlag("region", flags.Lookup("region"))
	_ = viper.BindPFlag("access-key", flags.Lookup("access-key"))
	_ = viper.BindPFlag("secret-key", flags.Lookup("secret-key"))
	_ = viper.BindPFlag("session-token", flags.Lookup("session-token"))
	_ = viper.BindPFlag("use-ssl", flags.Lookup("use-ssl"))
}

func newService() *metastore.Service {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return &metastore.Service{
		Logger: logger,
		ObjectStore: metastore.ObjectStoreDefaults{
			Endpoint:        viper.GetString("endpoint"),
			Region:          viper.GetString("region"),
			UseSSL:          viper.GetBool("use-ssl"),
			AccessKeyID:     viper.GetString("access-key"),
			SecretAccessKey: viper.GetString("secret-key"),
			SessionToken:    viper.GetString("session-token"),
		},
	}
}

func newRequest(location string) metastore.Request {
	return metastore.Request{
		Location: location,
		Local:    flagLocal,
		Format:   metastore.Format(strings.ToLower(strings.TrimSpace(flagFormat))),
	}
}
