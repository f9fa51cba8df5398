// Command hiresync runs the search backend of the hiring platform: the HTTP
// API, index maintenance, and command-line search, similarity and resume
// extraction against the same store and index.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/hiresync-go/cmd/hiresync/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
