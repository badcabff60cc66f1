// Command cascade propagates content changes to the publish queue.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/cascade/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
