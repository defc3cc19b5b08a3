package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akrylysov/algnhsa"
	"github.com/go-spatial/cobra"

	"github.com/atlasdatatech/layersync/cmd/internal/register"
	"github.com/atlasdatatech/layersync/internal/log"
	"github.com/atlasdatatech/layersync/server"
)

var (
	serverPort string
	lambda     bool
)

func init() {
	serveCmd.Flags().StringVarP(&serverPort, "port", "p", "", "port to bind the server to, overrides the config")
	serveCmd.Flags().BoolVar(&lambda, "lambda", false, "run as an AWS Lambda function behind API Gateway")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve map data layers",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newServer()
		if err != nil {
			return err
		}
		defer s.Store.Close()

		if lambda {
			algnhsa.ListenAndServe(s.NewRouter(), nil)
			return nil
		}

		port := conf.Webserver.Port
		if serverPort != "" {
			port = serverPort
		}
		srv := s.Start(port)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

func newServer() (*server.Server, error) {
	st, err := register.Store(conf)
	if err != nil {
		return nil, err
	}
	proxy, err := register.Proxy(conf.Proxy)
	if err != nil {
		st.Close()
		return nil, err
	}

	var maps []string
	for _, m := range conf.Maps {
		// maps with their own server are only synced, not served
		if m.Server == "" {
			maps = append(maps, m.Name)
		}
	}
	return &server.Server{
		Store:             st,
		Proxy:             proxy,
		Maps:              maps,
		CORSAllowedOrigin: conf.Webserver.CORSAllowedOrigin,
		MaxUploadSize:     conf.Webserver.MaxUploadSize,
	}, nil
}
