// Command pwgen generates passwords.
package main

import (
	"os"

	"github.com/safing/pwgen/cli"
)

func main() {
	os.Exit(cli.Execute())
}
