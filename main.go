// axon-metrics computes object-oriented design metrics for Go code.
//
// It parses a module into a structural code model, runs complexity, size,
// inheritance, cohesion and package coupling analyzers over it, and reports
// the results as JDepend XML, summary XML, JSON or text. Results are also
// kept in a local index that the CLI and an MCP server can query.
package main

import (
	"fmt"
	"os"

	"github.com/Benny93/axon-metrics/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
