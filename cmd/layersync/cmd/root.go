package cmd

import (
	"fmt"
	"time"

	"github.com/go-spatial/cobra"

	"github.com/atlasdatatech/layersync/atlas"
	"github.com/atlasdatatech/layersync/cmd/internal/register"
	"github.com/atlasdatatech/layersync/config"
	"github.com/atlasdatatech/layersync/internal/log"
	"github.com/atlasdatatech/layersync/server"
	"github.com/atlasdatatech/layersync/transport"
)

var (
	// set at build time
	Version = "version not set"

	configFile string
	logLevel   string
	timeout    time.Duration

	conf config.Config
)

func init() {
	RootCmd.PersistentFlags().StringVar(&configFile, "config", "config.toml", "path to the config file")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "one of debug, info, warn, error")
	RootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "timeout of client requests")

	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(pullCmd)
	RootCmd.AddCommand(pushCmd)
	RootCmd.AddCommand(versionCmd)
}

var RootCmd = &cobra.Command{
	Use:   "layersync",
	Short: "layersync keeps map data layers in step with a layer server",
	Long: fmt.Sprintf(`layersync %v

Serve map data layers, or pull and push them from the command line.`, Version),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd == versionCmd {
			return nil
		}
		return initConfig()
	},
}

func initConfig() (err error) {
	lvl, err := log.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	log.SetLogLevel(lvl)
	server.Version = Version

	log.Infof("loading config from %v", configFile)
	if conf, err = config.LoadFromPath(configFile); err != nil {
		return err
	}
	return nil
}

// defaultServer is the address of this server, used by maps that name none.
func defaultServer() string {
	host := conf.Webserver.Hostname
	if host == "" {
		host = "localhost"
	}
	return "http://" + host + conf.Webserver.Port
}

// clientMap registers the configured maps and returns the one named.
func clientMap(name string) (*atlas.Map, config.Map, error) {
	a := &atlas.Atlas{}
	t := &transport.HTTPClient{}
	if err := register.Maps(a, conf.Maps, defaultServer(), t); err != nil {
		return nil, config.Map{}, err
	}
	for _, m := range conf.Maps {
		if m.Name == name {
			am, err := a.Map(name)
			return am, m, err
		}
	}
	// maps not declared are looked up on this server
	m := atlas.NewMap(name, defaultServer(), t)
	return m, config.Map{Name: name}, nil
}
