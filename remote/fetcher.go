package remote

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/atlasdatatech/layersync/feature"
	"github.com/atlasdatatech/layersync/format"
	"github.com/atlasdatatech/layersync/internal/log"
	"github.com/atlasdatatech/layersync/transport"
)

// Viewport supplies the values substituted in url templates.
type Viewport struct {
	Zoom int
	// West, South, East, North
	BBox [4]float64
	// Lng, Lat
	Center [2]float64
}

func (vp *Viewport) replacer() *strings.Replacer {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	bbox := strings.Join([]string{f(vp.BBox[0]), f(vp.BBox[1]), f(vp.BBox[2]), f(vp.BBox[3])}, ",")
	return strings.NewReplacer(
		"{bbox}", bbox,
		"{west}", f(vp.BBox[0]),
		"{south}", f(vp.BBox[1]),
		"{east}", f(vp.BBox[2]),
		"{north}", f(vp.BBox[3]),
		"{zoom}", strconv.Itoa(vp.Zoom),
		"{lng}", f(vp.Center[0]),
		"{lat}", f(vp.Center[1]),
	)
}

// Fetcher issues remote data requests and parses the responses.
type Fetcher struct {
	Transport transport.Transport
	// ProxyURL is the caching proxy endpoint. Required for descriptors with
	// Proxy set.
	ProxyURL string
}

// ErrNoProxy is returned when a descriptor asks for the proxy but the
// fetcher has none configured.
var ErrNoProxy = errors.New("remote: proxy requested but no proxy url configured")

// ErrNoTransport is returned by Fetch on a fetcher without a Transport.
var ErrNoTransport = errors.New("remote: no transport configured")

// ResolveURL renders the descriptor url against vp and, when proxying is on,
// rewrites it through the caching proxy.
func (f *Fetcher) ResolveURL(d *Descriptor, vp *Viewport) (string, error) {
	if !d.Valid() {
		return "", fmt.Errorf("remote: invalid descriptor")
	}
	u := d.URL
	if vp != nil {
		u = vp.replacer().Replace(u)
	}
	if !d.Proxy {
		return u, nil
	}
	if f.ProxyURL == "" {
		return "", ErrNoProxy
	}
	sep := "?"
	if strings.Contains(f.ProxyURL, "?") {
		sep = "&"
	}
	proxied := f.ProxyURL + sep + "url=" + url.QueryEscape(u)
	if d.TTL > 0 {
		proxied += "&ttl=" + strconv.Itoa(int(d.TTL))
	}
	return proxied, nil
}

// Fetch gets and parses the resource described by d. Errors are either a
// transport failure or a format.FormatError / format.ParseError.
func (f *Fetcher) Fetch(ctx context.Context, d *Descriptor, vp *Viewport) (feature.Collection, error) {
	if f.Transport == nil {
		return feature.Collection{}, ErrNoTransport
	}
	u, err := f.ResolveURL(d, vp)
	if err != nil {
		return feature.Collection{}, err
	}
	log.Debugf("remote: fetching %v (%v)", u, d.Format)

	body, _, err := f.Transport.Get(ctx, u)
	if err != nil {
		return feature.Collection{}, err
	}
	return format.Parse(ctx, body, d.Format)
}
