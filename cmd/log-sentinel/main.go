// log-sentinel follows an application log file and raises alerts for attack
// patterns found in it.
package main

import (
	"os"

	"log-sentinel/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
