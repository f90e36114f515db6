// Package cli implements the tablectl command line interface: seeding,
// querying and deleting person entities against any table service backend.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jacentio/tablestore/store"
)

const (
	Version = "0.3.0"
)

// app holds the state shared by the commands of one invocation.
type app struct {
	v      *viper.Viper
	out    io.Writer
	logger *slog.Logger
	client *store.Client
	people *store.Model
	close  func() error
}

// NewRootCmd builds the tablectl command tree writing results to out and
// diagnostics to errOut.
func NewRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out}

	root := &cobra.Command{
		Use:   "tablectl",
		Short: "batch entity store for key-partitioned tables",
		Long: fmt.Sprintf(`tablectl (v%s)

Stores, queries and deletes entities in partitioned tables through the
tablestore client, against an in-memory, bolt or DynamoDB backend.`, Version),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, errOut)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(errOut)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	setupFlags(root)
	initConfig(a.v)

	root.AddCommand(newVersionCmd(out))
	root.AddCommand(newInsertCmd(a))
	root.AddCommand(newSeedCmd(a))
	root.AddCommand(newQueryCmd(a))
	root.AddCommand(newDeletePartitionCmd(a))
	root.AddCommand(newDemoCmd(a))
	return root
}

// setup binds flags, builds the logger and opens the backend.
func (a *app) setup(cmd *cobra.Command, errOut io.Writer) error {
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	logger, err := newLogger(a.v, errOut)
	if err != nil {
		return err
	}
	a.logger = logger

	svc, closeFn, err := openBackend(cmd.Context(), a.v, logger)
	if err != nil {
		return err
	}
	a.close = closeFn

	a.client = store.New(svc, store.Config{
		MaxParallelism: a.v.GetInt("parallelism"),
		Logger:         logger,
	})
	a.people, err = a.client.Define(personDescriptor(a.v.GetString("table")))
	return err
}

func (a *app) teardown(errOut io.Writer) error {
	if a.v.GetBool("metrics") {
		metrics.WritePrometheus(errOut, false)
	}
	if a.close != nil {
		return a.close()
	}
	return nil
}

func newVersionCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of tablectl",
		// No backend is needed to print the version.
		PersistentPreRun:  func(*cobra.Command, []string) {},
		PersistentPostRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(out, "tablectl v%s\n", Version)
		},
	}
}

// Execute runs the root command with the process arguments.
// This is called by main.main().
func Execute() {
	if err := NewRootCmd(os.Stdout, os.Stderr).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
