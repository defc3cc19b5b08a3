package layer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/atlasdatatech/layersync/feature"
	"github.com/atlasdatatech/layersync/internal/log"
	"github.com/atlasdatatech/layersync/transport"
)

// ResultKind tells how a save ended.
type ResultKind int

const (
	// ResultNoOp means nothing was sent.
	ResultNoOp ResultKind = iota
	ResultSaved
	// ResultConflict means the server copy changed since it was read. The
	// layer keeps its changes and Result.Retry can overwrite the server copy.
	ResultConflict
	// ResultDeleted means the layer was removed.
	ResultDeleted
)

func (k ResultKind) String() string {
	switch k {
	case ResultNoOp:
		return "no-op"
	case ResultSaved:
		return "saved"
	case ResultConflict:
		return "conflict"
	case ResultDeleted:
		return "deleted"
	}
	return fmt.Sprintf("ResultKind(%d)", int(k))
}

// Result is the outcome of Save.
type Result struct {
	Kind ResultKind
	// Version is the server version after a save.
	Version string
	// Conflict is set for ResultConflict.
	Conflict *ConflictError
	// Retry resubmits the snapshot that conflicted without a version
	// condition, then asks the owner to save every other pending layer.
	// Only set for ResultConflict.
	Retry func(ctx context.Context) (Result, error)
}

// Save sends the layer to the server. A layer pending deletion is deleted
// instead. A clean layer, or a persisted one whose data was never loaded,
// is not sent.
//
// A conflict is not an error: it is reported through the Result. Transport
// failures leave the layer dirty and are returned as TransportError.
func (l *DataLayer) Save(ctx context.Context) (Result, error) {
	rank := l.owner.Rank(l)

	l.mu.Lock()
	switch {
	case l.state == StateRemoved:
		l.mu.Unlock()
		return Result{}, ErrRemoved
	case l.saving:
		l.mu.Unlock()
		return Result{}, ErrSaveInFlight
	case l.state == StatePendingDelete:
		l.saving = true
		created := l.persisted
		l.mu.Unlock()
		return l.delete(ctx, created)
	case !l.state.Dirty():
		l.mu.Unlock()
		return Result{Kind: ResultNoOp}, nil
	case !l.online():
		l.mu.Unlock()
		return Result{}, ErrNoRoutes
	case !l.loaded, !l.dataLoaded && !l.options.IsRemote():
		// sending now would overwrite the server copy with an empty one
		l.mu.Unlock()
		log.Warnf("layer %v: not saving, data not loaded", l.id)
		return Result{Kind: ResultNoOp}, nil
	}

	snap := l.snapshotLocked()
	ref := l.referenceVersion
	notify, err := l.apply(EventSaveStarted)
	if err != nil {
		l.mu.Unlock()
		return Result{}, err
	}
	l.saving = true
	gen := l.gen
	l.mu.Unlock()
	notify()

	return l.submit(ctx, snap, rank, ref, gen)
}

// submit posts snap. ref, when set, conditions the write on the server
// version; gen is the mutation count snap was taken at.
func (l *DataLayer) submit(ctx context.Context, snap Snapshot, rank int, ref string, gen uint64) (Result, error) {
	form, err := snap.Form(rank)
	if err != nil {
		return l.saveFailed(TransportError{LayerID: l.id, Op: "encode", Err: err})
	}
	header := http.Header{}
	if ref != "" {
		header.Set(transport.HeaderReference, ref)
	}

	log.Debugf("layer %v: saving %v features (reference %q)", l.id, len(snap.Features), ref)
	body, resp, err := l.transport.Post(ctx, l.routes.SaveURL(l.id), header, form)
	switch {
	case transport.IsPreconditionFailed(err):
		return l.conflicted(snap, rank, ref, gen)
	case err != nil:
		return l.saveFailed(TransportError{LayerID: l.id, Op: "save", Err: err})
	}
	return l.saved(body, resp, snap, gen)
}

func (l *DataLayer) saveFailed(err error) (Result, error) {
	l.mu.Lock()
	l.saving = false
	notify, _ := l.apply(EventSaveFailed)
	l.mu.Unlock()
	notify()

	log.Errorf("%v", err)
	l.notifier.Warn(l, err)
	return Result{}, err
}

func (l *DataLayer) conflicted(snap Snapshot, rank int, ref string, gen uint64) (Result, error) {
	l.mu.Lock()
	l.saving = false
	notify, _ := l.apply(EventConflict)
	l.mu.Unlock()
	notify()

	cerr := &ConflictError{LayerID: l.id, Reference: ref}
	log.Warnf("%v", cerr)
	return Result{
		Kind:     ResultConflict,
		Conflict: cerr,
		Retry: func(ctx context.Context) (Result, error) {
			return l.retry(ctx, snap, rank, gen)
		},
	}, nil
}

// retry overwrites the server copy with snap and then saves the rest of
// the owner's pending layers.
func (l *DataLayer) retry(ctx context.Context, snap Snapshot, rank int, gen uint64) (Result, error) {
	l.mu.Lock()
	switch {
	case l.state == StateRemoved:
		l.mu.Unlock()
		return Result{}, ErrRemoved
	case l.saving:
		l.mu.Unlock()
		return Result{}, ErrSaveInFlight
	case l.state != StateConflicted:
		// reset or resolved some other way since
		l.mu.Unlock()
		return Result{Kind: ResultNoOp}, nil
	}
	notify, err := l.apply(EventSaveStarted)
	if err != nil {
		l.mu.Unlock()
		return Result{}, err
	}
	l.saving = true
	l.mu.Unlock()
	notify()

	log.Infof("layer %v: overwriting server copy", l.id)
	res, err := l.submit(ctx, snap, rank, "", gen)
	if err != nil || res.Kind != ResultSaved {
		return res, err
	}
	return res, l.owner.SaveAll(ctx)
}

// savedCollection extracts the stored layer from a save reply: either a
// FeatureCollection or an object carrying one, or its text, in "geojson".
func savedCollection(body []byte) (c feature.Collection, ok bool) {
	for depth := 0; depth < 2 && len(body) > 0; depth++ {
		var head struct {
			Type    string          `json:"type"`
			GeoJSON json.RawMessage `json:"geojson"`
		}
		if json.Unmarshal(body, &head) != nil {
			return c, false
		}
		if head.Type == "FeatureCollection" {
			ok = json.Unmarshal(body, &c) == nil
			return c, ok
		}
		body = head.GeoJSON
		var text string
		if json.Unmarshal(body, &text) == nil {
			body = []byte(text)
		}
	}
	return c, false
}

func (l *DataLayer) saved(body []byte, resp *transport.Response, snap Snapshot, gen uint64) (Result, error) {
	// The server may answer with the stored payload; it then replaces the
	// features and becomes the backup instead of what was sent.
	backupOpts := snap.Options
	returned, hasReturned := savedCollection(body)
	if hasReturned {
		if opts, ok, err := OptionsFromCollection(&returned); err == nil && ok {
			backupOpts = opts
		}
	}

	l.mu.Lock()
	l.saving = false
	if v := resp.Version(); v != "" {
		l.referenceVersion = v
	}
	created := !l.persisted
	l.persisted = true
	l.loaded = true
	var skipped []feature.UnknownGeometryError
	backupFeatures := snap.Features
	if !snap.Options.IsRemote() {
		l.dataLoaded = true
		if hasReturned && l.gen == gen {
			skipped = l.replaceFeaturesLocked(returned)
			backupFeatures = l.features.Features()
		}
	}
	l.backupLocked(backupOpts, backupFeatures)
	events := []Event{EventSaved}
	if l.gen != gen {
		// edited while the request was out
		events = append(events, EventMutated)
	}
	notify, _ := l.apply(events...)
	version := l.referenceVersion
	l.mu.Unlock()
	notify()
	l.warnSkipped(skipped)

	if created {
		log.Infof("layer %v: created at version %q", l.id, version)
	} else {
		log.Infof("layer %v: saved at version %q", l.id, version)
	}
	return Result{Kind: ResultSaved, Version: version}, nil
}

// delete issues the tombstone for a layer pending deletion. The layer is
// removed from its owner whatever the server answered.
func (l *DataLayer) delete(ctx context.Context, created bool) (Result, error) {
	var err error
	if created {
		if !l.online() {
			err = ErrNoRoutes
		} else if _, _, perr := l.transport.Post(ctx, l.routes.DeleteURL(l.id), nil, nil); perr != nil {
			err = TransportError{LayerID: l.id, Op: "delete", Err: perr}
		}
		if err != nil {
			log.Errorf("%v", err)
			l.notifier.Warn(l, err)
		}
	}

	l.mu.Lock()
	l.saving = false
	l.visible = false
	notify, _ := l.apply(EventRemoved)
	l.mu.Unlock()
	notify()

	l.owner.Disconnect(l)
	l.renderer.LayersChanged()
	log.Infof("layer %v: deleted", l.id)
	return Result{Kind: ResultDeleted}, err
}
