package server

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"strconv"

	"github.com/dimfeld/httptreemux"

	"github.com/atlasdatatech/layersync/feature"
	"github.com/atlasdatatech/layersync/internal/log"
	"github.com/atlasdatatech/layersync/layer"
	"github.com/atlasdatatech/layersync/server/store"
	"github.com/atlasdatatech/layersync/transport"
)

const (
	headerReference = transport.HeaderReference
	headerVersion   = transport.HeaderVersion
)

// LayerSummary is the metadata answered by the listing and by saves.
type LayerSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	DisplayOnLoad bool   `json:"displayOnLoad"`
	Rank          int    `json:"rank"`
	Version       string `json:"version,omitempty"`
}

func summary(r store.Record) LayerSummary {
	return LayerSummary{ID: r.ID, Name: r.Name, DisplayOnLoad: r.DisplayOnLoad, Rank: r.Rank, Version: r.Version}
}

// params returns the map and layer url params, checking the map is served.
func (s *Server) params(w http.ResponseWriter, r *http.Request) (mapName, layerID string, ok bool) {
	params := httptreemux.ContextParams(r.Context())
	mapName, layerID = params[paramMap], params[paramLayer]
	if !s.servesMap(mapName) {
		writeError(w, http.StatusNotFound, ErrMapNotFound(mapName))
		return "", "", false
	}
	return mapName, layerID, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		log.Errorf("%v", err)
	} else {
		log.Debugf("%v: %v", status, err)
	}
	http.Error(w, err.Error(), status)
}

// HandleGetLayer answers the stored feature collection of a layer.
type HandleGetLayer struct {
	*Server
}

func (h HandleGetLayer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mapName, id, ok := h.params(w, r)
	if !ok {
		return
	}
	rec, err := h.Store.Get(r.Context(), mapName, id)
	switch {
	case err == store.ErrNotFound:
		writeError(w, http.StatusNotFound, ErrLayerNotFound{Map: mapName, ID: id})
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(headerVersion, rec.Version)
	w.Write(rec.GeoJSON)
}

// HandleSaveLayer creates or replaces a layer. When the request carries a
// reference version, the write only happens if the stored layer is still at
// that version; it fails with 412 Precondition Failed otherwise.
type HandleSaveLayer struct {
	*Server
}

func (h HandleSaveLayer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mapName, id, ok := h.params(w, r)
	if !ok {
		return
	}
	max := h.MaxUploadSize
	if max == 0 {
		max = MaxUploadSize
	}
	r.Body = http.MaxBytesReader(w, r.Body, max)
	// url encoded bodies are accepted too
	if err := r.ParseMultipartForm(max); err != nil && err != http.ErrNotMultipart {
		writeError(w, http.StatusBadRequest, ErrBadRequest{Err: err})
		return
	}

	rec, err := recordFromForm(r, mapName, id)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ref := r.Header.Get(headerReference)
	version, err := h.Store.Put(r.Context(), rec, ref)
	switch {
	case err == store.ErrVersionMismatch:
		writeError(w, http.StatusPreconditionFailed, ErrStale{Map: mapName, ID: id, Reference: ref})
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	rec.Version = version
	log.Infof("map %v: layer %v saved at %v", mapName, id, version)

	w.Header().Set(headerVersion, version)
	writeJSON(w, summary(rec))
}

// formValue returns a form field, sent either as a value or as a file.
func formValue(r *http.Request, name string) ([]byte, error) {
	if r.MultipartForm != nil {
		if files := r.MultipartForm.File[name]; len(files) > 0 {
			f, err := files[0].Open()
			if err != nil {
				return nil, err
			}
			defer f.Close()
			return ioutil.ReadAll(f)
		}
	}
	return []byte(r.FormValue(name)), nil
}

func recordFromForm(r *http.Request, mapName, id string) (store.Record, error) {
	rec := store.Record{Map: mapName, ID: id, DisplayOnLoad: true}

	rec.Name = r.FormValue(layer.FieldName)
	if v := r.FormValue(layer.FieldDisplayOnLoad); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return rec, ErrInvalidField{Field: layer.FieldDisplayOnLoad, Err: err}
		}
		rec.DisplayOnLoad = b
	}
	if v := r.FormValue(layer.FieldRank); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return rec, ErrInvalidField{Field: layer.FieldRank, Err: err}
		}
		rec.Rank = n
	}

	settings := map[string]interface{}{}
	if v := r.FormValue(layer.FieldSettings); v != "" {
		if err := json.Unmarshal([]byte(v), &settings); err != nil {
			return rec, ErrInvalidField{Field: layer.FieldSettings, Err: err}
		}
	}
	settings["id"] = id
	raw, err := json.Marshal(settings)
	if err != nil {
		return rec, ErrInvalidField{Field: layer.FieldSettings, Err: err}
	}
	rec.Settings = raw

	geojson, err := formValue(r, layer.FieldGeoJSON)
	if err != nil {
		return rec, ErrInvalidField{Field: layer.FieldGeoJSON, Err: err}
	}
	if len(geojson) == 0 {
		return rec, ErrInvalidField{Field: layer.FieldGeoJSON, Err: errMissing}
	}
	var c feature.Collection
	if err := json.Unmarshal(geojson, &c); err != nil {
		return rec, ErrInvalidField{Field: layer.FieldGeoJSON, Err: err}
	}
	rec.GeoJSON = geojson
	return rec, nil
}

// HandleDeleteLayer removes a layer.
type HandleDeleteLayer struct {
	*Server
}

func (h HandleDeleteLayer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mapName, id, ok := h.params(w, r)
	if !ok {
		return
	}
	err := h.Store.Delete(r.Context(), mapName, id)
	switch {
	case err == store.ErrNotFound:
		writeError(w, http.StatusNotFound, ErrLayerNotFound{Map: mapName, ID: id})
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	log.Infof("map %v: layer %v deleted", mapName, id)
	writeJSON(w, map[string]string{"id": id})
}

// HandleListLayers answers the layers of a map in rank order.
type HandleListLayers struct {
	*Server
}

func (h HandleListLayers) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mapName, _, ok := h.params(w, r)
	if !ok {
		return
	}
	recs, err := h.list(r.Context(), mapName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, recs)
}

func (h HandleListLayers) list(ctx context.Context, mapName string) ([]LayerSummary, error) {
	recs, err := h.Store.List(ctx, mapName)
	if err != nil {
		return nil, err
	}
	out := make([]LayerSummary, len(recs))
	for i := range recs {
		out[i] = summary(recs[i])
	}
	return out, nil
}
