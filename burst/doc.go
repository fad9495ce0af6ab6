// Package burst provides a lazily started worker pool for short bursts of
// parallel work.
//
// A Pool starts its goroutines on first submission and restarts them if it
// is used again after Close. Executors group a batch of tasks and wait for
// them together:
//
//	pool := burst.NewPool("io", burst.WithWorkers(8))
//	defer pool.Close()
//
//	b := pool.Burst(len(shards), true)
//	for _, s := range shards {
//	    b.Queue(func(ctx context.Context) error { return persist(ctx, s) })
//	}
//	err := b.Complete()
//
// Single tasks with a result use Submit:
//
//	f := burst.Submit(pool, func(ctx context.Context) (*Shard, error) { ... })
//	s, err := f.Get(ctx)
package burst
