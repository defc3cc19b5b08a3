package cmd

import (
	"context"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/go-spatial/cobra"

	"github.com/atlasdatatech/layersync/atlas"
	"github.com/atlasdatatech/layersync/cmd/internal/register"
	"github.com/atlasdatatech/layersync/config"
	"github.com/atlasdatatech/layersync/format"
	"github.com/atlasdatatech/layersync/internal/log"
	"github.com/atlasdatatech/layersync/layer"
)

var (
	pushFormat  string
	pushForce   bool
	pushReplace bool
)

func init() {
	pushCmd.Flags().StringVarP(&pushFormat, "format", "f", "", "format of the file (default: from its extension)")
	pushCmd.Flags().BoolVar(&pushForce, "force", false, "overwrite the server copy when it changed")
	pushCmd.Flags().BoolVar(&pushReplace, "replace", false, "replace the layer features instead of adding to them")
}

var pushCmd = &cobra.Command{
	Use:   "push <map> <layer> <file>",
	Short: "import a file into a layer and save it",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		name := pushFormat
		if name == "" {
			name = strings.TrimPrefix(filepath.Ext(args[2]), ".")
		}
		raw, err := ioutil.ReadFile(args[2])
		if err != nil {
			return err
		}
		c, err := format.Parse(ctx, raw, name)
		if err != nil {
			return err
		}

		m, mcfg, err := clientMap(args[0])
		if err != nil {
			return err
		}
		l, err := pushTarget(ctx, m, mcfg, args[1])
		if err != nil {
			return err
		}

		if pushReplace {
			if err := l.Empty(); err != nil {
				return err
			}
		}
		skipped, err := l.Import(c)
		if err != nil {
			return err
		}
		for _, s := range skipped {
			log.Warnf("skipped: %v", s)
		}

		res, err := l.Save(ctx)
		if err != nil {
			return err
		}
		if res.Kind == layer.ResultConflict {
			if !pushForce {
				return fmt.Errorf("layer %v changed on the server since it was read; pull it again or push with --force", l.ID())
			}
			log.Warnf("layer %v changed on the server, overwriting", l.ID())
			if res, err = res.Retry(ctx); err != nil {
				return err
			}
		}
		log.Infof("layer %v: %v (version %v, %v features)", l.ID(), res.Kind, l.ReferenceVersion(), l.Len())
		return nil
	},
}

// pushTarget loads the layer when the server has it, and creates it
// otherwise, from its declaration if there is one.
func pushTarget(ctx context.Context, m *atlas.Map, mcfg config.Map, id string) (*layer.DataLayer, error) {
	summaries, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range summaries {
		if s.ID != id {
			continue
		}
		l := m.NewLayer(layer.Config{ID: id, Persisted: true})
		return l, l.FetchMetadataAndData(ctx)
	}

	lcfg, ok := register.FindLayer(mcfg, id)
	if !ok {
		lcfg = config.Layer{ID: id, Name: id}
	}
	log.Infof("layer %v is not on the server, creating it", id)
	return register.Layer(m, lcfg)
}
