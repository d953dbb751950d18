package cmd

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/trickle/internal/buffers"
	"github.com/tanq16/trickle/internal/config"
	"github.com/tanq16/trickle/internal/engine"
	"github.com/tanq16/trickle/internal/perf"
	"github.com/tanq16/trickle/internal/source"
	"github.com/tanq16/trickle/internal/storage"
	"github.com/tanq16/trickle/internal/tasks"
	"github.com/tanq16/trickle/internal/utils"
)

const (
	engineStream = "stream"
	engineResume = "resume"
	engineDual   = "dual"
)

var (
	heapOnce   sync.Once
	sharedHeap buffers.Heap
)

// heapFor returns the process-wide heap: a budget heap when one is
// configured, the host otherwise.
func heapFor(c config.Config) buffers.Heap {
	heapOnce.Do(func() {
		if c.HeapBudget > 0 {
			sharedHeap = buffers.NewBudgetHeap(c.HeapBudget)
			return
		}
		sharedHeap = buffers.NewSystemHeap()
	})
	return sharedHeap
}

func storeFor(c config.Config) *storage.FS {
	return storage.NewOSFS(c.Storage.Root, c.Storage.Capacity)
}

func newRouter(c config.Config) *source.Router {
	return source.NewRouter(
		source.NewHTTPSource(utils.NewHTTPClient(c.HTTP)),
		source.NewS3Source(c.S3Profile),
	)
}

// buildDownloader wires a downloader of the given kind. The returned
// release func frees its buffers.
func buildDownloader(c config.Config, kind string, store storage.Store, monitor *perf.Monitor) (engine.Downloader, func(), error) {
	heap := heapFor(c)
	router := newRouter(c)
	ecfg := c.Engine
	opts := []engine.Option{engine.WithMonitor(monitor), engine.WithAllocator(heap)}

	switch kind {
	case engineDual:
		if units := runtime.NumCPU(); ecfg.Unit >= units {
			log.Warn().Str("op", "cmd/runtime").Int("unit", ecfg.Unit).Int("units", units).Msg("execution unit not available, using the last one")
			ecfg.Unit = units - 1
		}
		opts = append(opts, engine.WithConfig(ecfg), engine.WithSpawner(tasks.NewLauncher()))
		return engine.NewDualCoreDownloader(router, store, opts...), func() {}, nil
	case engineStream, engineResume, "":
	default:
		return nil, nil, fmt.Errorf("unknown engine %q (use stream, resume or dual)", kind)
	}

	mgr := buffers.NewManager(heap)
	if !mgr.CheckHealth() {
		log.Warn().Str("op", "cmd/runtime").Str("status", mgr.Status().Message).Msg("starting with low memory")
	}
	if err := mgr.Allocate(); err != nil {
		log.Warn().Str("op", "cmd/runtime").Err(err).Msg("buffer pool unavailable, using scratch buffer")
	} else if !mgr.Validate() {
		mgr.Deallocate()
	}
	opts = append(opts, engine.WithConfig(ecfg), engine.WithBufferManager(mgr))
	base := engine.NewStreamDownloader(router, store, opts...)
	if kind == engineResume {
		return engine.NewResumeDownloader(base, router), mgr.Deallocate, nil
	}
	return base, mgr.Deallocate, nil
}
