// Package main serves the detection proxy that counts items in cropped images.
package main

import (
	"go.viam.com/utils"

	"github.com/invscan/autocount/logging"
	"github.com/invscan/autocount/web/server"
)

var logger = logging.NewLogger("detectproxy")

func main() {
	utils.ContextualMain(server.RunServer, logger)
}
