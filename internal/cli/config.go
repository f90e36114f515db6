package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jacentio/tablestore/backend/bolt"
	"github.com/jacentio/tablestore/backend/dynamo"
	"github.com/jacentio/tablestore/backend/memtable"
	"github.com/jacentio/tablestore/store"
)

const (
	// wrap is the number of characters to wrap the help text at
	wrap int = 50
)

// wrapString wraps a string at wrap characters
func wrapString(text string) string {
	var lines []string
	var line strings.Builder
	width := 0

	for _, word := range strings.Fields(text) {
		if width > 0 && width+1+len(word) > wrap {
			lines = append(lines, line.String())
			line.Reset()
			width = 0
		}
		if width > 0 {
			line.WriteString(" ")
			width++
		}
		line.WriteString(word)
		width += len(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

// setupFlags adds the connection and logging flags shared by every command.
func setupFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("backend", "memory", wrapString("table service to use (memory, bolt, dynamodb)"))
	flags.String("bolt-path", "tablestore.db", wrapString("database file of the bolt backend"))
	flags.String("endpoint", "", wrapString("DynamoDB endpoint override, e.g. http://localhost:8000 for DynamoDB Local"))
	flags.String("region", "", wrapString("AWS region of the dynamodb backend (default from the AWS config)"))
	flags.String("profile", "", wrapString("AWS shared config profile of the dynamodb backend"))
	flags.String("table-prefix", "", wrapString("prefix prepended to DynamoDB table names"))
	flags.String("table", "Persons", wrapString("logical table the person model is stored in"))
	flags.Int("parallelism", 4, wrapString("maximum number of chunks written concurrently"))
	flags.String("log-level", "info", wrapString("log level (debug, info, warn, error)"))
	flags.String("log-format", "text", wrapString("log format (text, json)"))
	flags.Bool("metrics", false, wrapString("print metrics in Prometheus text format to stderr on exit"))
}

// initConfig loads .env files and binds TABLECTL_ environment variables.
func initConfig(v *viper.Viper) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	v.SetEnvPrefix("tablectl")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// newLogger builds the slog logger selected by log-level and log-format.
func newLogger(v *viper.Viper, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log-level"))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", v.GetString("log-level"))
	}

	opts := &slog.HandlerOptions{Level: level}
	switch v.GetString("log-format") {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %s", v.GetString("log-format"))
	}
}

// openBackend creates the table service selected by backend. The returned
// close function releases it.
func openBackend(ctx context.Context, v *viper.Viper, logger *slog.Logger) (store.TableService, func() error, error) {
	noop := func() error { return nil }

	switch v.GetString("backend") {
	case "memory":
		return memtable.New(memtable.Options{}), noop, nil

	case "bolt":
		svc, err := bolt.Open(v.GetString("bolt-path"), bolt.Options{})
		if err != nil {
			return nil, nil, err
		}
		return svc, svc.Close, nil

	case "dynamodb":
		var opts []func(*config.LoadOptions) error
		if region := v.GetString("region"); region != "" {
			opts = append(opts, config.WithRegion(region))
		}
		if profile := v.GetString("profile"); profile != "" {
			opts = append(opts, config.WithSharedConfigProfile(profile))
		}
		cfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("load AWS config: %w", err)
		}

		client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
			if endpoint := v.GetString("endpoint"); endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		})
		return dynamo.New(client, dynamo.Options{
			TablePrefix: v.GetString("table-prefix"),
			Logger:      logger,
		}), noop, nil

	default:
		return nil, nil, fmt.Errorf("invalid backend %s", v.GetString("backend"))
	}
}
