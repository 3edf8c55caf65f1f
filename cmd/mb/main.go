// Command mb runs build pipelines over a content-addressed artifact store.
package main

import (
	"os"

	"github.com/Iron-Ham/mailcd/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
