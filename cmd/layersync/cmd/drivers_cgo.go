//go:build cgo
// +build cgo

package cmd

import (
	_ "github.com/atlasdatatech/layersync/format/gpkg"
	_ "github.com/atlasdatatech/layersync/server/store/sqlite"
)
