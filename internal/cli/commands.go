package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jacentio/tablestore/store"
)

func newInsertCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insert [partition] [firstName] [lastName]",
		Short: "Inserts a single person and prints the first persons of the table",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			person := a.people.Build(store.Entity{
				"Id":        uuid.New(),
				"Partition": args[0],
				"FirstName": args[1],
				"LastName":  args[2],
				"Created":   time.Now().UTC(),
			})
			if err := a.people.Insert(cmd.Context(), []store.Entity{person}); err != nil {
				return err
			}

			top, _ := cmd.Flags().GetInt("top")
			results, err := a.people.Query(cmd.Context(), store.Query{Top: top})
			if err != nil {
				return err
			}
			return a.print(results)
		},
	}
	cmd.Flags().Int("top", 2, wrapString("number of persons printed after the insert"))
	return cmd
}

func newSeedCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed [partition] [count]",
		Short: "Stores count generated persons in a partition",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var count int
			if _, err := fmt.Sscan(args[1], &count); err != nil || count < 0 {
				return fmt.Errorf("count must be a non-negative number: %s", args[1])
			}
			mode, err := parseMode(cmd)
			if err != nil {
				return err
			}

			persons := make([]store.Entity, count)
			for i := range persons {
				persons[i] = a.people.Build(store.Entity{
					"Id":        uuid.New(),
					"Partition": args[0],
					"FirstName": "DefaultFirstName",
					"LastName":  "DefaultLastName",
					"Counter":   i,
				})
			}

			started := time.Now()
			progress := store.WithProgress(func(chunk int, remaining []store.Entity) {
				a.logger.Info("chunk progress", "chunk", chunk, "pending", len(remaining))
			})
			if err := a.people.Store(cmd.Context(), mode, persons, progress); err != nil {
				return err
			}

			fmt.Fprintf(a.out, "stored %d persons in %s\n", count, time.Since(started).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().String("mode", "merge", wrapString("write mode (insert, insert-exclusive, merge, merge-exclusive)"))
	return cmd
}

func parseMode(cmd *cobra.Command) (store.Mode, error) {
	name, _ := cmd.Flags().GetString("mode")
	for _, m := range []store.Mode{store.ModeInsert, store.ModeInsertExclusive, store.ModeMerge, store.ModeMergeExclusive} {
		if m.String() == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("invalid mode %s", name)
}

func newQueryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Queries persons by partition and row key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			partition, _ := cmd.Flags().GetString("partition")
			row, _ := cmd.Flags().GetString("row")
			top, _ := cmd.Flags().GetInt("top")
			paged, _ := cmd.Flags().GetBool("paged")

			q := store.Query{PartitionKey: partition, RowKey: row, Top: top}
			if !paged {
				results, err := a.people.Query(cmd.Context(), q)
				if err != nil {
					return err
				}
				return a.print(results)
			}

			total := 0
			err := a.people.QueryPaged(cmd.Context(), q, func(page []store.Entity) error {
				total += len(page)
				fmt.Fprintf(a.out, "next page with size %d\n", len(page))
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "loaded %d persons\n", total)
			return nil
		},
	}
	cmd.Flags().String("partition", "", wrapString("partition key to match (empty matches all)"))
	cmd.Flags().String("row", "", wrapString("row key to match (empty matches all)"))
	cmd.Flags().Int("top", 0, wrapString("maximum number of results (0 for all)"))
	cmd.Flags().Bool("paged", false, wrapString("stream page sizes instead of printing entities"))
	return cmd
}

func newDeletePartitionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-partition [partition]",
		Short: "Deletes every person stored under a partition key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.people.DeleteByPartitionKey(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deleted partition %s\n", args[0])
			return nil
		},
	}
}

// newDemoCmd runs insert, paged query, full query and delete in one process,
// which also makes the memory backend useful.
func newDemoCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Inserts, pages through and deletes a generated partition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")
			ctx := cmd.Context()

			persons := make([]store.Entity, count)
			for i := range persons {
				persons[i] = a.people.Build(store.Entity{
					"Id":        uuid.New(),
					"Partition": "PERSON",
					"FirstName": "DefaultFirstName",
					"LastName":  "DefaultLastName",
					"Counter":   i,
				})
			}

			fmt.Fprintf(a.out, "creating %d items...\n", count)
			if err := a.people.Insert(ctx, persons); err != nil {
				return err
			}

			fmt.Fprintln(a.out, "loading paged...")
			err := a.people.QueryPaged(ctx, store.Query{PartitionKey: "PERSON"}, func(page []store.Entity) error {
				fmt.Fprintf(a.out, "next page with size %d\n", len(page))
				return nil
			})
			if err != nil {
				return err
			}

			all, err := a.people.Query(ctx, store.Query{PartitionKey: "PERSON"})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "loaded %d\n", len(all))

			fmt.Fprintln(a.out, "deleting persons...")
			if err := a.people.Delete(ctx, persons); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "done")
			return nil
		},
	}
	cmd.Flags().Int("count", 2500, wrapString("number of persons to generate"))
	return cmd
}

// print writes one JSON document per entity.
func (a *app) print(entities []store.Entity) error {
	enc := json.NewEncoder(a.out)
	for _, e := range entities {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}
