// Package main is the autocount CLI command itself.
package main

import (
	"log"
	"os"

	"github.com/invscan/autocount/cli"
)

func main() {
	if err := cli.NewApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
