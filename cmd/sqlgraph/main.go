// Package main provides the CLI for the sqlgraph pipeline runner.
package main

import (
	"os"

	"github.com/leapstack-labs/sqlgraph/internal/cli"

	// Register the gateways selectable through target.type.
	_ "github.com/leapstack-labs/sqlgraph/pkg/adapters/mysql"
	_ "github.com/leapstack-labs/sqlgraph/pkg/adapters/mysqlcli"
)

func main() {
	if err := cli.Execute(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
