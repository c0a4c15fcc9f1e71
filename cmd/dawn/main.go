package main

import (
	"os"

	"github.com/griffinclark/Dan-at-Dawn/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
