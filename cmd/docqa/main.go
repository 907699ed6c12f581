// Command docqa answers questions about uploaded documents. It classifies a
// document against a list of categories, answers free-form questions about
// it, or summarizes and tags it, either from the command line or through an
// HTTP server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/54b3r/docqa-go/cmd/docqa/commands"
)

func main() {
	if err := commands.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
