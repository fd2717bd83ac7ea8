// launchctl - admin CLI for launchpad
package main

import (
	"fmt"
	"os"

	"github.com/ashureev/launchpad/internal/cli"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if err := cli.RootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
