// Command tablectl stores, queries and deletes entities in partitioned tables.
//
// See tablectl --help for a list of all commands.
package main

import "github.com/jacentio/tablestore/internal/cli"

func main() {
	cli.Execute()
}
