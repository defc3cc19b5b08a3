package cmd

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"os"

	"github.com/go-spatial/cobra"
	"github.com/pkg/errors"

	"github.com/atlasdatatech/layersync/internal/log"
	"github.com/atlasdatatech/layersync/layer"
)

var pullOutput string

func init() {
	pullCmd.Flags().StringVarP(&pullOutput, "output", "o", "", "file to write the layer to (default stdout)")
}

var pullCmd = &cobra.Command{
	Use:   "pull <map> <layer>",
	Short: "write a layer, with its options, as GeoJSON",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		m, _, err := clientMap(args[0])
		if err != nil {
			return err
		}
		l := m.NewLayer(layer.Config{ID: args[1], Persisted: true})
		// showing loads the layer and fetches its remote data
		if err := l.Show(ctx); err != nil {
			return err
		}

		c, err := l.Export()
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return errors.Wrap(err, "encoding layer")
		}
		out = append(out, '\n')

		if pullOutput == "" {
			_, err = os.Stdout.Write(out)
			return err
		}
		if err := ioutil.WriteFile(pullOutput, out, 0644); err != nil {
			return err
		}
		log.Infof("layer %v (%v features, version %v) written to %v", l.ID(), l.Len(), l.ReferenceVersion(), pullOutput)
		return nil
	},
}
