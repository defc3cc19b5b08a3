package cmd

import (
	// store backends
	_ "github.com/atlasdatatech/layersync/server/store/memory"
	_ "github.com/atlasdatatech/layersync/server/store/postgres"
	_ "github.com/atlasdatatech/layersync/server/store/s3"

	// formats
	_ "github.com/atlasdatatech/layersync/format/csv"
	_ "github.com/atlasdatatech/layersync/format/geojson"
)
