package loader

import (
	"context"

	"github.com/dharper/prview/internal/cache"
	"github.com/dharper/prview/internal/syntax"
)

// MaxPrefetchFiles caps how many files one prefetch trigger will build.
const MaxPrefetchFiles = 50

// PrefetchJob is one file queued for a highlighted background build.
type PrefetchJob struct {
	FileIndex int
	Path      string
	Patch     string
}

// PrefetchResult is one built highlighted cache, tagged for stale-message
// validation at the receiver.
type PrefetchResult struct {
	Key   cache.PRKey
	Cache *cache.DiffCache
}

// PrefetchJobs selects the files worth prefetching: those whose highlighted
// cache is not already stored, capped at MaxPrefetchFiles.
func PrefetchJobs(key cache.PRKey, files []PrefetchJob, cached func(fileIndex int) bool) []PrefetchJob {
	jobs := make([]PrefetchJob, 0, MaxPrefetchFiles)
	for _, job := range files {
		if cached(job.FileIndex) {
			continue
		}
		jobs = append(jobs, job)
		if len(jobs) == MaxPrefetchFiles {
			break
		}
	}
	return jobs
}

// StartPrefetch builds highlighted caches for the given jobs on one worker
// goroutine that owns its own parser pool. Results stream on the returned
// channel, which is closed when the batch finishes or the context is
// cancelled. The receiver validates each result's triple before install.
func StartPrefetch(ctx context.Context, key cache.PRKey, jobs []PrefetchJob) <-chan PrefetchResult {
	ch := make(chan PrefetchResult, len(jobs))
	go func() {
		defer close(ch)
		pool := syntax.NewPool()
		for _, job := range jobs {
			if ctx.Err() != nil {
				return
			}
			dc := cache.BuildHighlighted(pool, cache.BuildInput{
				PR:        key,
				FileIndex: job.FileIndex,
				Path:      job.Path,
				Patch:     job.Patch,
			})
			select {
			case ch <- PrefetchResult{Key: key, Cache: dc}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// StartHighlightBuild runs a single highlighted build off the UI thread,
// used when the active file misses both cache tiers. The channel carries one
// result and is closed.
func StartHighlightBuild(ctx context.Context, key cache.PRKey, job PrefetchJob) <-chan PrefetchResult {
	return StartPrefetch(ctx, key, []PrefetchJob{job})
}
