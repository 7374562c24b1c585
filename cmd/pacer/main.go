// Command pacer keeps project schedules consistent with their task
// dependency graphs.
package main

import (
	"os"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
