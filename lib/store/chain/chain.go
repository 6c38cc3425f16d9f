package chain

import (
	"fmt"
	"github.com/ValentinKolb/stacKV/lib/common"
	"github.com/ValentinKolb/stacKV/lib/db/engines/archive"
	"github.com/ValentinKolb/stacKV/lib/db/engines/bolt"
	"github.com/ValentinKolb/stacKV/lib/db/engines/file"
	"github.com/ValentinKolb/stacKV/lib/store"
	"github.com/ValentinKolb/stacKV/lib/store/dualstore"
	"github.com/ValentinKolb/stacKV/lib/store/lstore"
	"github.com/ValentinKolb/stacKV/lib/store/metricstore"
	"github.com/ValentinKolb/stacKV/lib/store/obsstore"
	"github.com/ValentinKolb/stacKV/lib/store/retrystore"
	"github.com/ValentinKolb/stacKV/lib/store/rstore"
	"github.com/ValentinKolb/stacKV/lib/store/safestore"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/afero"
	"regexp"
	"strings"
)

var log = logger.GetLogger("chain")

// Layer names accepted in a layer list
const (
	LayerMemory  = "memory"
	LayerFile    = "file"
	LayerArchive = "archive"
	LayerBolt    = "bolt"
	LayerRemote  = "remote"
	LayerSafe    = "safe"
	LayerRetry   = "retry"
	LayerObserve = "observe"
	LayerMetrics = "metrics"
)

var dualPattern = regexp.MustCompile(`^dual\(\s*([a-z0-9_-]+)\s*\|\s*([a-z0-9_-]+)\s*\)$`)

// LeafFactory creates a custom leaf that can be referenced by name in a layer list
type LeafFactory func() (store.IStore, error)

// Options are the parts of a chain that cannot be expressed in a ChainConfig
type Options struct {
	// Fs is the filesystem of the file and archive layers (nil = the OS filesystem)
	Fs afero.Fs
	// OnError receives the errors absorbed by safe layers and the failed attempts of
	// retry layers (nil = log them)
	OnError store.ErrorHandler
	// Leaves registers additional leaf names
	Leaves map[string]LeafFactory
}

// Chain is an assembled store pipeline
type Chain struct {
	// Store is the top of the pipeline
	Store store.IStore
	// Metrics holds the metrics of all metrics layers (nil if there is none)
	Metrics *metrics.Set
	// Observer is the topmost observe layer (nil if there is none)
	Observer *obsstore.Store
	// Layers is the normalized layer list
	Layers []string
}

// Close closes the whole pipeline.
func (c *Chain) Close() error {
	return c.Store.Close()
}

// ParseLayers splits a comma separated layer list (top first) and normalizes the names.
func ParseLayers(list string) ([]string, error) {
	var layers []string
	for _, part := range strings.Split(list, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		layers = append(layers, name)
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("empty layer list")
	}
	return layers, nil
}

// Build assembles the pipeline described by cfg.Layers, bottom layer first.
// Leaves without fallback semantics (remote, dual, custom leaves) must be the bottom layer,
// decorators need a layer beneath them.
func Build(cfg common.ChainConfig, opts Options) (*Chain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.OnError == nil {
		opts.OnError = func(err error) {
			log.Warningf("%v", err)
		}
	}

	b := &builder{cfg: cfg, opts: opts, chain: &Chain{}}
	var below store.IStore
	for i := len(cfg.Layers) - 1; i >= 0; i-- {
		name := strings.ToLower(strings.TrimSpace(cfg.Layers[i]))
		s, err := b.layer(i, name, below)
		if err != nil {
			if below != nil {
				_ = below.Close()
			}
			return nil, fmt.Errorf("layer %d (%s): %w", i, name, err)
		}
		below = s
		b.chain.Layers = append([]string{name}, b.chain.Layers...)
	}
	b.chain.Store = below
	log.Infof("store chain built: %s", strings.Join(b.chain.Layers, " -> "))
	return b.chain, nil
}

// --------------------------------------------------------------------------
// Builder
// --------------------------------------------------------------------------

type builder struct {
	cfg   common.ChainConfig
	opts  Options
	chain *Chain
}

func (b *builder) layer(index int, name string, below store.IStore) (store.IStore, error) {
	switch name {
	case LayerMemory, LayerFile, LayerArchive, LayerBolt:
		return b.local(name, below)
	case LayerSafe, LayerRetry, LayerObserve, LayerMetrics:
		if below == nil {
			return nil, fmt.Errorf("decorator needs a layer beneath it")
		}
		return b.decorator(index, name, below), nil
	}

	if below != nil {
		return nil, fmt.Errorf("%s must be the bottom layer", name)
	}
	if m := dualPattern.FindStringSubmatch(name); m != nil {
		primary, err := b.leaf(m[1])
		if err != nil {
			return nil, err
		}
		secondary, err := b.leaf(m[2])
		if err != nil {
			_ = primary.Close()
			return nil, err
		}
		return dualstore.New(primary, secondary), nil
	}
	return b.leaf(name)
}

// leaf creates a store without fallback
func (b *builder) leaf(name string) (store.IStore, error) {
	switch name {
	case LayerMemory, LayerFile, LayerArchive, LayerBolt:
		return b.local(name, nil)
	case LayerRemote:
		return b.remote()
	}
	if factory, ok := b.opts.Leaves[name]; ok {
		return factory()
	}
	return nil, fmt.Errorf("unknown layer %q", name)
}

func (b *builder) local(name string, below store.IStore) (store.IStore, error) {
	switch name {
	case LayerMemory:
		return lstore.NewMemoryStore(below), nil
	case LayerFile:
		return lstore.NewFileStore(file.DBOptions{Fs: b.opts.Fs, Dir: b.cfg.ResolvedFileDir()}, below), nil
	case LayerArchive:
		s, err := lstore.NewArchiveStore(archive.DBOptions{
			Fs:             b.opts.Fs,
			Path:           b.cfg.ResolvedArchivePath(),
			FlushThreshold: b.cfg.ArchiveFlush,
		}, below)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		s, err := lstore.NewBoltStore(bolt.DBOptions{Path: b.cfg.ResolvedBoltPath()}, below)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func (b *builder) remote() (store.IStore, error) {
	if b.cfg.RemoteURL == "" {
		return nil, fmt.Errorf("remote layer needs a remote url")
	}
	var fetcher rstore.Fetcher
	switch b.cfg.RemoteFormat {
	case common.RemoteFormatJSON:
		fetcher = &rstore.JSONFetcher{URL: b.cfg.RemoteURL}
	default:
		fetcher = &rstore.SheetFetcher{URL: b.cfg.RemoteURL}
	}
	return rstore.NewRemoteStore(fetcher, rstore.Options{Interval: b.cfg.RemoteInterval}), nil
}

func (b *builder) decorator(index int, name string, below store.IStore) store.IStore {
	switch name {
	case LayerSafe:
		return safestore.New(below, safestore.Options{OnError: b.opts.OnError})
	case LayerRetry:
		return retrystore.New(below, retrystore.Options{
			MaxAttempts:  b.cfg.Retries,
			InitialDelay: b.cfg.RetryDelay,
			MaxDelay:     b.cfg.RetryMaxDelay,
			Jitter:       true,
			OnError:      b.opts.OnError,
		})
	case LayerObserve:
		obs := obsstore.New(below)
		obs.Subscribe(func(e obsstore.Event) {
			log.Infof("change: %s %q", e.Type, e.Key)
		})
		// layers are built bottom up, the last one assigned is the topmost
		b.chain.Observer = obs
		return obs
	default:
		if b.chain.Metrics == nil {
			b.chain.Metrics = metrics.NewSet()
		}
		return metricstore.New(below, b.chain.Metrics, fmt.Sprintf("layer%d", index))
	}
}
