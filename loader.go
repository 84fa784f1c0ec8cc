package rowan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	// Image formats the loader decodes.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
)

// Kind identifies a resource's fetch/decode/unload strategy. The set is
// closed: dispatching any other value fails with [ErrUnsupportedKind].
type Kind uint8

const (
	KindBinary Kind = iota
	KindImage
	KindJSON
	KindScript
	KindTMX
	KindTSX
	KindAudio
	KindFontFace
)

var kindNames = [...]string{"binary", "image", "json", "script", "tmx", "tsx", "audio", "fontface"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a kind name, as written in manifests, to its Kind.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: resource kind %q", ErrUnsupportedKind, s)
}

// Resource describes one asset to load. Name is the cache key; Src is the
// path handed to the Fetcher after base-path prefixing.
type Resource struct {
	Name string
	Kind Kind
	Src  string

	// Data supplies the payload inline; Src is then ignored.
	Data []byte

	// Stream keeps audio compressed and decodes on each play instead of
	// buffering PCM up front. Audio only.
	Stream bool
}

// DefaultSettleDelay is the pause between the last resource of a batch
// landing and the completion callback firing.
const DefaultSettleDelay = 300 * time.Millisecond

// LoaderConfig configures a [Loader]. The zero value is usable for
// resources carrying inline data.
//
// OnProgress and OnError run inside the loader's batch serialization lock:
// they may call getters freely but must not call Preload. Start follow-up
// batches from the completion callback, which runs lock-free.
type LoaderConfig struct {
	// Fetcher retrieves resource bytes for descriptors without inline
	// data.
	Fetcher Fetcher

	// SettleDelay is the grace period between the last resource of a
	// batch landing and the completion callback, leaving dependent side
	// effects room to finish. Zero means DefaultSettleDelay; a negative
	// value disables the delay.
	SettleDelay time.Duration

	// OnBatchStart, if set, fires when a preload batch begins, before any
	// fetch starts. Game code typically switches to a loading screen here.
	OnBatchStart func(total int)

	// OnProgress, if set, fires once per landed resource with the
	// completed fraction of the batch and the resource that landed. Calls
	// are serialized, follow completion order, and the fraction strictly
	// increases, reaching 1.0 on the last resource.
	OnProgress func(fraction float64, res Resource)

	// OnError, if set, fires for each resource whose fetch or decode
	// fails. A failed resource never counts toward batch completion, so a
	// batch with failures does not complete; this callback is the place
	// to abandon or rebuild it.
	OnError func(res Resource, err error)
}

// Loader fetches, decodes, and caches game resources by kind. All caches
// live on the loader itself; there is no process-wide state, so tests and
// scenes can hold independent loaders. Methods are safe for concurrent
// use.
//
// Loader satisfies [AssetSource], so a built map resolves its tileset
// images straight from the loader's image cache.
type Loader struct {
	cfg LoaderConfig

	// mu guards the caches, base paths, descriptors, and listener lists.
	mu          sync.Mutex
	basePaths   map[string]string
	binaries    map[string][]byte
	images      map[string]*ebiten.Image
	jsons       map[string][]byte
	scripts     map[string]*Script
	maps        map[string]*Map
	tilesets    map[string]*Tileset
	tracks      map[string]*AudioTrack
	fonts       map[string]*text.GoTextFaceSource
	descriptors map[string]Resource

	mapListeners      []func(name string, m *Map)
	completeListeners []func()

	// batchMu guards batch bookkeeping and serializes the progress and
	// error callbacks. Callbacks may call loader getters (they take mu),
	// never Preload.
	batchMu sync.Mutex
	batch   *loadBatch
}

type loadBatch struct {
	total      int
	loaded     int
	done       bool
	onComplete func()

	// Tile maps parse when their fetch lands but build only after the
	// whole batch has landed, so the tilesets and images they reference
	// are cached regardless of fetch completion order.
	pendingMaps []pendingMap
}

type pendingMap struct {
	idx int
	res Resource
	doc map[string]any
}

// NewLoader builds an empty loader.
func NewLoader(cfg LoaderConfig) *Loader {
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	return &Loader{
		cfg:         cfg,
		basePaths:   make(map[string]string),
		binaries:    make(map[string][]byte),
		images:      make(map[string]*ebiten.Image),
		jsons:       make(map[string][]byte),
		scripts:     make(map[string]*Script),
		maps:        make(map[string]*Map),
		tilesets:    make(map[string]*Tileset),
		tracks:      make(map[string]*AudioTrack),
		fonts:       make(map[string]*text.GoTextFaceSource),
		descriptors: make(map[string]Resource),
	}
}

// SetBasePath prefixes the source paths of one kind at fetch time. Kind
// "*" is a wildcard applying to every kind except "fontface", which opts
// out of asset-path rewriting.
func (l *Loader) SetBasePath(kind, base string) error {
	if kind != "*" {
		if _, err := ParseKind(kind); err != nil {
			return err
		}
	}
	l.mu.Lock()
	l.basePaths[kind] = base
	l.mu.Unlock()
	return nil
}

// Preload fetches a batch of resources concurrently, each with unit
// weight. Progress and error callbacks fire as resources land; after every
// resource has landed, pending tile maps build in declaration order, the
// settle delay elapses, and onComplete fires exactly once, followed by any
// registered batch listeners.
func (l *Loader) Preload(resources []Resource, onComplete func()) error {
	if onComplete == nil {
		return fmt.Errorf("%w: preload needs a completion callback", ErrConfiguration)
	}

	l.batchMu.Lock()
	if l.batch != nil && !l.batch.done {
		l.batchMu.Unlock()
		return fmt.Errorf("%w: a preload batch is already in flight", ErrConfiguration)
	}
	b := &loadBatch{total: len(resources), onComplete: onComplete}
	l.batch = b
	l.batchMu.Unlock()

	if l.cfg.OnBatchStart != nil {
		l.cfg.OnBatchStart(len(resources))
	}

	if len(resources) == 0 {
		l.batchMu.Lock()
		b.done = true
		l.finishBatchLocked(b)
		l.batchMu.Unlock()
		return nil
	}

	for i, res := range resources {
		go l.loadAsync(b, i, res)
	}
	return nil
}

// Load fetches, decodes, and caches a single resource synchronously. A
// tile map loaded this way builds immediately, so the tilesets and images
// it references must already be cached.
func (l *Loader) Load(res Resource) error {
	data, err := l.payload(res)
	if err != nil {
		return err
	}
	return l.decodeAndStore(res, data, nil, 0)
}

// Reload re-fetches a previously loaded resource under its original
// descriptor, replacing the cached entry. Tile maps rebuild against the
// current caches.
func (l *Loader) Reload(name string) error {
	l.mu.Lock()
	res, ok := l.descriptors[name]
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: resource %q was never loaded", ErrNotFound, name)
	}
	return l.Load(res)
}

// Unload removes a resource from its kind cache, reporting whether an
// entry was removed. Absent entries are a no-op.
func (l *Loader) Unload(res Resource) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	ok := false
	switch res.Kind {
	case KindBinary:
		_, ok = l.binaries[res.Name]
		delete(l.binaries, res.Name)
	case KindImage:
		_, ok = l.images[res.Name]
		delete(l.images, res.Name)
	case KindJSON:
		_, ok = l.jsons[res.Name]
		delete(l.jsons, res.Name)
	case KindScript:
		_, ok = l.scripts[res.Name]
		delete(l.scripts, res.Name)
	case KindTMX:
		_, ok = l.maps[res.Name]
		delete(l.maps, res.Name)
	case KindTSX:
		_, ok = l.tilesets[res.Name]
		delete(l.tilesets, res.Name)
	case KindAudio:
		_, ok = l.tracks[res.Name]
		delete(l.tracks, res.Name)
	case KindFontFace:
		_, ok = l.fonts[res.Name]
		delete(l.fonts, res.Name)
	}
	if ok {
		delete(l.descriptors, res.Name)
	}
	return ok
}

// UnloadAll empties every cache. In-flight batches are not cancelled;
// their resources land in the emptied caches.
func (l *Loader) UnloadAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.binaries = make(map[string][]byte)
	l.images = make(map[string]*ebiten.Image)
	l.jsons = make(map[string][]byte)
	l.scripts = make(map[string]*Script)
	l.maps = make(map[string]*Map)
	l.tilesets = make(map[string]*Tileset)
	l.tracks = make(map[string]*AudioTrack)
	l.fonts = make(map[string]*text.GoTextFaceSource)
	l.descriptors = make(map[string]Resource)
}

// OnMapLoaded registers a listener invoked whenever a tile map resource
// finishes building, with the resource name and the built map. During
// batch loads the listener runs under the loader's batch serialization
// lock, so like OnProgress it must not call Preload; start follow-up
// batches from the completion callback.
func (l *Loader) OnMapLoaded(fn func(name string, m *Map)) {
	l.mu.Lock()
	l.mapListeners = append(l.mapListeners, fn)
	l.mu.Unlock()
}

// OnBatchComplete registers a persistent listener invoked after every
// completed batch, following that batch's own completion callback.
func (l *Loader) OnBatchComplete(fn func()) {
	l.mu.Lock()
	l.completeListeners = append(l.completeListeners, fn)
	l.mu.Unlock()
}

// --- getters ---

// GetBinary returns a cached binary resource.
func (l *Loader) GetBinary(name string) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.binaries[name]
	return b, ok
}

// GetImage returns a cached image resource.
func (l *Loader) GetImage(name string) (*ebiten.Image, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	img, ok := l.images[name]
	return img, ok
}

// GetJSON returns a cached json resource's raw bytes.
func (l *Loader) GetJSON(name string) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.jsons[name]
	return b, ok
}

// DecodeJSON unmarshals a cached json resource into v.
func (l *Loader) DecodeJSON(name string, v any) error {
	b, ok := l.GetJSON(name)
	if !ok {
		return fmt.Errorf("%w: json resource %q", ErrNotFound, name)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: json resource %q: %v", ErrParse, name, err)
	}
	return nil
}

// GetScript returns a cached compiled script.
func (l *Loader) GetScript(name string) (*Script, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.scripts[name]
	return s, ok
}

// GetTMX returns a cached built tile map.
func (l *Loader) GetTMX(name string) (*Map, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.maps[name]
	return m, ok
}

// GetTileset returns a cached standalone tileset.
func (l *Loader) GetTileset(name string) (*Tileset, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ts, ok := l.tilesets[name]
	return ts, ok
}

// GetAudio returns a cached audio track.
func (l *Loader) GetAudio(name string) (*AudioTrack, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.tracks[name]
	return t, ok
}

// GetFontFace returns a cached font face source.
func (l *Loader) GetFontFace(name string) (*text.GoTextFaceSource, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, ok := l.fonts[name]
	return f, ok
}

// ResourceFor finds the loaded resource whose resolved source path matches
// path. It connects filesystem watch events back to [Loader.Reload].
func (l *Loader) ResourceFor(path string) (Resource, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, res := range l.descriptors {
		if res.Src != "" && l.resolveSrcLocked(res) == path {
			return res, true
		}
	}
	return Resource{}, false
}

// --- load pipeline ---

func (l *Loader) loadAsync(b *loadBatch, idx int, res Resource) {
	data, err := l.payload(res)
	if err == nil {
		err = l.decodeAndStore(res, data, b, idx)
	}
	if err != nil {
		debugf("load %s %q failed: %v", res.Kind, res.Name, err)
		l.batchMu.Lock()
		if l.cfg.OnError != nil {
			l.cfg.OnError(res, err)
		}
		l.batchMu.Unlock()
		return
	}
	debugf("loaded %s %q", res.Kind, res.Name)
	l.progress(b, res)
}

// payload resolves a resource's raw bytes: inline data wins, otherwise the
// fetcher runs against the base-path-prefixed source. Unknown kinds fail
// here, before any fetch.
func (l *Loader) payload(res Resource) ([]byte, error) {
	if int(res.Kind) >= len(kindNames) {
		return nil, fmt.Errorf("%w: resource kind %d", ErrUnsupportedKind, uint8(res.Kind))
	}
	if res.Data != nil {
		return res.Data, nil
	}
	if l.cfg.Fetcher == nil {
		return nil, fmt.Errorf("%w: loader has no fetcher and resource %q carries no inline data",
			ErrConfiguration, res.Name)
	}
	return l.cfg.Fetcher.Fetch(l.resolveSrc(res))
}

func (l *Loader) resolveSrc(res Resource) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resolveSrcLocked(res)
}

func (l *Loader) resolveSrcLocked(res Resource) string {
	base := l.basePaths[res.Kind.String()]
	if base == "" && res.Kind != KindFontFace {
		base = l.basePaths["*"]
	}
	if base == "" {
		return res.Src
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(res.Src, "/")
}

// decodeAndStore turns raw bytes into the typed cache entry for the
// resource's kind. Inside a batch (b non-nil) tile maps are parsed here
// but built at batch completion; everything else stores immediately.
func (l *Loader) decodeAndStore(res Resource, data []byte, b *loadBatch, idx int) error {
	switch res.Kind {
	case KindBinary:
		l.store(res, func() { l.binaries[res.Name] = data })

	case KindImage:
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("%w: image %q: %v", ErrParse, res.Name, err)
		}
		eimg := ebiten.NewImageFromImage(img)
		l.store(res, func() { l.images[res.Name] = eimg })

	case KindJSON:
		if !json.Valid(data) {
			return fmt.Errorf("%w: json %q: invalid document", ErrParse, res.Name)
		}
		l.store(res, func() { l.jsons[res.Name] = data })

	case KindScript:
		sc, err := compileScript(res.Name, data)
		if err != nil {
			return err
		}
		l.store(res, func() { l.scripts[res.Name] = sc })

	case KindTSX:
		doc, err := parseMapDoc(res, data)
		if err != nil {
			return err
		}
		ts, err := BuildTileset(doc, l)
		if err != nil {
			return err
		}
		l.store(res, func() { l.tilesets[res.Name] = ts })

	case KindTMX:
		doc, err := parseMapDoc(res, data)
		if err != nil {
			return err
		}
		if b != nil {
			l.batchMu.Lock()
			b.pendingMaps = append(b.pendingMaps, pendingMap{idx: idx, res: res, doc: doc})
			l.batchMu.Unlock()
			return nil
		}
		m, err := BuildMap(doc, l)
		if err != nil {
			return err
		}
		l.store(res, func() { l.maps[res.Name] = m })
		l.notifyMap(res.Name, m)

	case KindAudio:
		t, err := decodeAudio(res.Name, srcExt(res), data, res.Stream)
		if err != nil {
			return err
		}
		l.store(res, func() { l.tracks[res.Name] = t })

	case KindFontFace:
		src, err := text.NewGoTextFaceSource(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("%w: font face %q: %v", ErrParse, res.Name, err)
		}
		l.store(res, func() { l.fonts[res.Name] = src })

	default:
		return fmt.Errorf("%w: resource kind %d", ErrUnsupportedKind, uint8(res.Kind))
	}
	return nil
}

func (l *Loader) store(res Resource, put func()) {
	l.mu.Lock()
	put()
	l.descriptors[res.Name] = res
	l.mu.Unlock()
}

func (l *Loader) notifyMap(name string, m *Map) {
	l.mu.Lock()
	listeners := append([]func(string, *Map)(nil), l.mapListeners...)
	l.mu.Unlock()
	for _, fn := range listeners {
		fn(name, m)
	}
}

// progress advances the batch counter. The counter increment and the
// progress callback share one critical section, so fractions reach the
// callback strictly increasing even with fetches racing.
func (l *Loader) progress(b *loadBatch, res Resource) {
	l.batchMu.Lock()
	defer l.batchMu.Unlock()

	b.loaded++
	if l.cfg.OnProgress != nil {
		l.cfg.OnProgress(float64(b.loaded)/float64(b.total), res)
	}
	if b.loaded == b.total && !b.done {
		b.done = true
		l.finishBatchLocked(b)
	}
}

// finishBatchLocked builds the batch's pending maps and arms the settle
// timer. Called with batchMu held; the completion callback itself runs on
// the timer goroutine with no locks held, so it may start the next batch.
func (l *Loader) finishBatchLocked(b *loadBatch) {
	sort.Slice(b.pendingMaps, func(i, j int) bool { return b.pendingMaps[i].idx < b.pendingMaps[j].idx })
	for _, pm := range b.pendingMaps {
		m, err := BuildMap(pm.doc, l)
		if err != nil {
			if l.cfg.OnError != nil {
				l.cfg.OnError(pm.res, err)
			}
			continue
		}
		l.store(pm.res, func() { l.maps[pm.res.Name] = m })
		l.notifyMap(pm.res.Name, m)
	}
	b.pendingMaps = nil

	l.mu.Lock()
	listeners := append([]func()(nil), l.completeListeners...)
	l.mu.Unlock()

	debugf("batch of %d landed, settling %s", b.total, l.cfg.SettleDelay)
	onComplete := b.onComplete
	time.AfterFunc(l.cfg.SettleDelay, func() {
		onComplete()
		for _, fn := range listeners {
			fn()
		}
	})
}

// parseMapDoc normalizes a map or tileset payload, picking the
// serialization from the declared source extension, never from content.
func parseMapDoc(res Resource, data []byte) (map[string]any, error) {
	switch srcExt(res) {
	case ".tmj", ".tsj", ".json":
		return ParseTMJ(data)
	default:
		return ParseTMX(data)
	}
}

func srcExt(res Resource) string {
	name := res.Src
	if name == "" {
		name = res.Name
	}
	return strings.ToLower(filepath.Ext(name))
}
