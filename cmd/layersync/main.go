package main

import (
	"os"

	_ "github.com/theckman/goconstraint/go1.10/gte"

	"github.com/atlasdatatech/layersync/cmd/layersync/cmd"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
