package cache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"cache-engine/internal/cache/codec"
	"cache-engine/internal/cache/configstore"
	"cache-engine/internal/cache/invalidation"
	"cache-engine/internal/cache/warming"
	"cache-engine/internal/common/errors"
	"cache-engine/internal/common/logging"
	"cache-engine/internal/metrics"
)

// sweepBatch bounds how many expired entries one sweep cycle removes from
// the in-process tiers, so the sweep never starves foreground traffic.
const sweepBatch = 1000

// Options configures a Manager.
type Options struct {
	// Stores are the tier stores ordered fastest first.
	Stores []Store
	// Config serves the live configuration snapshots.
	Config *configstore.Store
	// Metrics is optional; nil disables instrumentation.
	Metrics *metrics.Metrics
	// Loader is the optional upstream data source used by warming.
	Loader warming.Loader
	// Logger defaults to the global logger.
	Logger logging.Logger
	// TierOpTimeout bounds every single tier operation.
	TierOpTimeout time.Duration
}

// Manager orchestrates the cache tiers. It is the sole entry point for
// callers; no caller ever talks to a tier directly. A Manager is an owned,
// explicitly constructed instance, not a process-wide singleton.
type Manager struct {
	stores    []Store
	cfg       *configstore.Store
	comp      *codec.Compressor
	ser       *codec.Serializer
	metrics   *metrics.Metrics
	loader    warming.Loader
	log       logging.Logger
	opTimeout time.Duration
	warmer    *warming.Scheduler

	hits   atomic.Int64
	misses atomic.Int64

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager wires a Manager from its tier stores and configuration.
func NewManager(opts Options) (*Manager, error) {
	if len(opts.Stores) == 0 {
		return nil, errors.Config("at least one tier store is required")
	}
	if opts.Config == nil {
		return nil, errors.Config("a configuration store is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetGlobalLogger()
	}
	if opts.TierOpTimeout <= 0 {
		opts.TierOpTimeout = 2 * time.Second
	}

	snap := opts.Config.Snapshot()

	// The live threshold is enforced per call from the snapshot; the
	// compressor itself never refuses a payload.
	comp, err := codec.NewCompressor(0)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		stores:    opts.Stores,
		cfg:       opts.Config,
		comp:      comp,
		ser:       codec.NewSerializer(codec.Format(snap.SerializationFormat)),
		metrics:   opts.Metrics,
		loader:    opts.Loader,
		log:       opts.Logger,
		opTimeout: opts.TierOpTimeout,
		stopCh:    make(chan struct{}),
	}
	m.warmer = warming.NewScheduler(m, opts.Logger)
	return m, nil
}

// Start launches the background expiry sweep and L3 cleanup loops.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.sweepLoop()
}

// Stop cancels the background loops and warming jobs, waits for them and
// closes the tier stores.
func (m *Manager) Stop(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.warmer.Stop()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	for _, store := range m.stores {
		if err := store.Close(); err != nil {
			m.log.Warn("failed to close tier store",
				logging.String("level", string(store.Level())), logging.Err(err))
		}
	}
	return nil
}

// enabledStores returns the stores whose tier is enabled in the snapshot,
// preserving the fastest-first order.
func (m *Manager) enabledStores(snap *configstore.Settings) []Store {
	stores := make([]Store, 0, len(m.stores))
	for _, store := range m.stores {
		if tier := snap.TierFor(string(store.Level())); tier != nil && tier.Enabled {
			stores = append(stores, store)
		}
	}
	return stores
}

// targetStores narrows the enabled stores to a caller-selected subset.
func (m *Manager) targetStores(snap *configstore.Settings, levels []Level) []Store {
	stores := m.enabledStores(snap)
	if len(levels) == 0 {
		return stores
	}

	wanted := make(map[Level]bool, len(levels))
	for _, level := range levels {
		wanted[level] = true
	}

	targeted := stores[:0:0]
	for _, store := range stores {
		if wanted[store.Level()] {
			targeted = append(targeted, store)
		}
	}
	return targeted
}

// tierCtx bounds one store operation with the per-tier timeout.
func (m *Manager) tierCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.opTimeout)
}

// Get looks the key up tier by tier, fastest first, stopping at the first
// hit. A tier error or timeout is treated as a miss for that tier and the
// lookup falls through to the next one. A hit below the fastest tier
// promotes the entry.
func (m *Manager) Get(ctx context.Context, key string) (*GetResult, error) {
	defer m.observe("get", time.Now())

	if key == "" {
		return nil, errors.Validation("key must not be empty")
	}

	snap := m.cfg.Snapshot()
	stores := m.enabledStores(snap)
	tierErrs := make(map[Level]string)

	for i, store := range stores {
		tctx, cancel := m.tierCtx(ctx)
		entry, err := store.Get(tctx, key)
		cancel()
		if err != nil {
			tierErrs[store.Level()] = err.Error()
			m.log.Warn("tier lookup failed, falling through",
				logging.String("level", string(store.Level())),
				logging.String("key", key), logging.Err(err))
			continue
		}
		if entry == nil {
			continue
		}

		m.hits.Add(1)
		if m.metrics != nil {
			m.metrics.Hits.WithLabelValues(string(store.Level())).Inc()
		}

		value, err := m.decode(entry)
		if err != nil {
			return nil, err
		}

		if i > 0 {
			m.promote(ctx, entry, stores[:i], snap)
		}

		result := &GetResult{Found: true, Key: key, Value: value, Metadata: metadataFrom(entry)}
		if len(tierErrs) > 0 {
			result.TierErrors = tierErrs
		}
		return result, nil
	}

	m.misses.Add(1)
	if m.metrics != nil {
		m.metrics.Misses.Inc()
	}

	result := &GetResult{Found: false, Key: key}
	if len(tierErrs) > 0 {
		result.TierErrors = tierErrs
	}
	return result, nil
}

// decode reverses compression and serialization on a stored entry.
func (m *Manager) decode(entry *Entry) (interface{}, error) {
	data := entry.Value
	if entry.Compressed {
		decompressed, err := m.comp.Decompress(data, entry.CompressionAlgorithm)
		if err != nil {
			return nil, err
		}
		data = decompressed
	}
	return m.ser.Decode(data, entry.SerializationFormat)
}

// promote copies an entry hit at a slower tier into the faster tiers so the
// next lookup is served at the lowest latency. Promotion out of L3 is
// configurable.
func (m *Manager) promote(ctx context.Context, entry *Entry, fasterStores []Store, snap *configstore.Settings) {
	if entry.Level == LevelL3 && !snap.PromoteFromL3 {
		return
	}
	if entry.RemainingTTL(time.Now()) <= 0 {
		return
	}

	for _, store := range fasterStores {
		tctx, cancel := m.tierCtx(ctx)
		err := store.Set(tctx, entry)
		cancel()
		if err != nil {
			m.log.Debug("promotion write failed",
				logging.String("level", string(store.Level())),
				logging.String("key", entry.Key), logging.Err(err))
			continue
		}
		if m.metrics != nil {
			m.metrics.Promotions.WithLabelValues(string(entry.Level)).Inc()
		}
	}
}

// Set encodes, optionally compresses and fans the entry out to the targeted
// tiers. Tier writes fail independently; the call succeeds if at least one
// targeted tier accepted the write.
func (m *Manager) Set(ctx context.Context, key string, value interface{}, opts SetOptions) (*SetResult, error) {
	defer m.observe("set", time.Now())

	if key == "" {
		return nil, errors.Validation("key must not be empty")
	}

	snap := m.cfg.Snapshot()
	stores := m.targetStores(snap, opts.Levels)
	if len(stores) == 0 {
		return nil, errors.Validation("no enabled cache level targeted")
	}

	format := opts.Format
	if format == "" {
		format = codec.Format(snap.SerializationFormat)
	}

	data, err := m.ser.Encode(value, format)
	if err != nil {
		return nil, err
	}

	algorithm := codec.Algorithm(snap.CompressionAlgorithm)
	if opts.DisableCompression || len(data) < snap.CompressionMinBytes {
		algorithm = codec.AlgorithmNone
	}
	stored, applied, ratio, err := m.comp.Compress(data, algorithm)
	if err != nil {
		return nil, err
	}

	sizeBytes := int64(len(stored))
	if sizeBytes > snap.MaxEntrySizeBytes() {
		return nil, errors.EntryTooLarge(sizeBytes, snap.MaxEntrySizeBytes())
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL(snap, stores)
	}

	now := time.Now().UTC()
	entry := &Entry{
		Key:                  key,
		Value:                stored,
		TypeTag:              opts.TypeTag,
		CreatedAt:            now,
		LastAccessedAt:       now,
		TTL:                  ttl,
		ExpiresAt:            now.Add(ttl),
		SizeBytes:            sizeBytes,
		Compressed:           applied != codec.AlgorithmNone,
		CompressionAlgorithm: applied,
		CompressionRatio:     ratio,
		SerializationFormat:  format,
		Tags:                 opts.Tags,
	}

	result := &SetResult{
		Key:                  key,
		SizeBytes:            sizeBytes,
		Compressed:           entry.Compressed,
		CompressionAlgorithm: applied,
		ExpiresAt:            entry.ExpiresAt,
		Created:              true,
	}

	var lastErr error
	for _, store := range stores {
		tctx, cancel := m.tierCtx(ctx)
		if result.Created {
			if existed, err := store.Contains(tctx, key); err == nil && existed {
				result.Created = false
			}
		}
		err := store.Set(tctx, entry)
		cancel()
		if err != nil {
			lastErr = err
			result.Failures = append(result.Failures, TierFailure{Level: store.Level(), Error: err.Error()})
			if m.metrics != nil {
				m.metrics.Sets.WithLabelValues(string(store.Level()), "failed").Inc()
			}
			m.log.Warn("tier write failed",
				logging.String("level", string(store.Level())),
				logging.String("key", key), logging.Err(err))
			continue
		}
		result.LevelsStored = append(result.LevelsStored, store.Level())
		if m.metrics != nil {
			m.metrics.Sets.WithLabelValues(string(store.Level()), "stored").Inc()
		}
	}

	if len(result.LevelsStored) == 0 {
		return nil, errors.BackendUnavailable("all targeted tiers", lastErr).
			WithContext("key", key)
	}
	return result, nil
}

// defaultTTL picks the largest default among the targeted tiers, so a write
// that reaches a durable tier is not capped by a fast tier's short default.
func defaultTTL(snap *configstore.Settings, stores []Store) time.Duration {
	var ttl time.Duration
	for _, store := range stores {
		if tier := snap.TierFor(string(store.Level())); tier != nil && tier.DefaultTTL > ttl {
			ttl = tier.DefaultTTL
		}
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return ttl
}

// Delete removes the key from every enabled tier. It is idempotent: deleting
// an absent key succeeds with an empty DeletedFrom.
func (m *Manager) Delete(ctx context.Context, key string) (*DeleteResult, error) {
	defer m.observe("delete", time.Now())

	if key == "" {
		return nil, errors.Validation("key must not be empty")
	}

	snap := m.cfg.Snapshot()
	result := &DeleteResult{Key: key, DeletedFrom: []Level{}}

	for _, store := range m.enabledStores(snap) {
		tctx, cancel := m.tierCtx(ctx)
		deleted, err := store.Delete(tctx, key)
		cancel()
		if err != nil {
			if result.TierErrors == nil {
				result.TierErrors = make(map[Level]string)
			}
			result.TierErrors[store.Level()] = err.Error()
			continue
		}
		if deleted {
			result.DeletedFrom = append(result.DeletedFrom, store.Level())
		}
	}
	return result, nil
}

// Invalidate removes every key matching the glob pattern from the targeted
// tiers, returning exact per-tier and aggregate tallies. It is designed to
// be called by the owning data service right after a mutating write.
func (m *Manager) Invalidate(ctx context.Context, pattern string, levels []Level) (*InvalidateResult, error) {
	defer m.observe("invalidate", time.Now())

	if _, err := invalidation.Compile(pattern); err != nil {
		return nil, err
	}

	snap := m.cfg.Snapshot()
	stores := m.targetStores(snap, levels)

	result := &InvalidateResult{
		Pattern:  pattern,
		PerLevel: make(map[Level]int),
	}

	for _, store := range stores {
		tctx, cancel := m.tierCtx(ctx)
		keys, err := store.ScanPattern(tctx, pattern)
		cancel()
		if err != nil {
			if result.TierErrors == nil {
				result.TierErrors = make(map[Level]string)
			}
			result.TierErrors[store.Level()] = err.Error()
			continue
		}

		removed := 0
		for _, key := range keys {
			tctx, cancel := m.tierCtx(ctx)
			deleted, err := store.Delete(tctx, key)
			cancel()
			if err != nil {
				if result.TierErrors == nil {
					result.TierErrors = make(map[Level]string)
				}
				result.TierErrors[store.Level()] = err.Error()
				break
			}
			if deleted {
				removed++
			}
		}

		result.PerLevel[store.Level()] = removed
		result.Count += removed
	}

	if m.metrics != nil {
		m.metrics.Invalidations.Add(float64(result.Count))
	}

	m.log.Info("pattern invalidation completed",
		logging.String("pattern", pattern),
		logging.Int("invalidated_count", result.Count))

	return result, nil
}

// Warm submits a warming job and returns its handle immediately.
func (m *Manager) Warm(ctx context.Context, req warming.Request) (*warming.Job, error) {
	return m.warmer.Submit(ctx, req)
}

// WarmJob returns a warming job by id.
func (m *Manager) WarmJob(id string) (*warming.Job, bool) {
	return m.warmer.Job(id)
}

// CancelWarmJob cancels a warming job by id.
func (m *Manager) CancelWarmJob(id string) bool {
	return m.warmer.Cancel(id)
}

// WarmKey implements warming.Target. With a registered loader it fetches the
// value upstream and stores it; without one it falls back to a lookup, which
// promotes whatever the slower tiers already hold.
func (m *Manager) WarmKey(ctx context.Context, key string) error {
	if m.loader != nil {
		value, err := m.loader.Load(ctx, key)
		if err != nil {
			return err
		}
		_, err = m.Set(ctx, key, value, SetOptions{})
		return err
	}

	result, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	if !result.Found {
		return errors.NotFound(key)
	}
	return nil
}

// ResolvePatterns implements warming.Target: it expands glob patterns to the
// union of matching keys across the enabled tiers.
func (m *Manager) ResolvePatterns(ctx context.Context, patterns []string) ([]string, error) {
	snap := m.cfg.Snapshot()
	seen := make(map[string]struct{})

	for _, pattern := range patterns {
		if _, err := invalidation.Compile(pattern); err != nil {
			return nil, err
		}
		for _, store := range m.enabledStores(snap) {
			tctx, cancel := m.tierCtx(ctx)
			keys, err := store.ScanPattern(tctx, pattern)
			cancel()
			if err != nil {
				m.log.Warn("pattern resolution failed on tier",
					logging.String("level", string(store.Level())),
					logging.String("pattern", pattern), logging.Err(err))
				continue
			}
			for _, key := range keys {
				seen[key] = struct{}{}
			}
		}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Status aggregates per-tier health with the manager's hit statistics and
// refreshes the per-tier gauges.
func (m *Manager) Status(ctx context.Context) *StatusReport {
	snap := m.cfg.Snapshot()

	hits := m.hits.Load()
	misses := m.misses.Load()
	report := &StatusReport{Healthy: true, Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		report.HitRatio = float64(hits) / float64(total)
	}

	for _, store := range m.stores {
		tier := TierStatus{Level: store.Level()}
		if cfg := snap.TierFor(string(store.Level())); cfg != nil {
			tier.Enabled = cfg.Enabled
		}
		if !tier.Enabled {
			report.Tiers = append(report.Tiers, tier)
			continue
		}

		tctx, cancel := m.tierCtx(ctx)
		if err := store.Health(tctx); err != nil {
			tier.Error = err.Error()
			report.Healthy = false
		} else {
			tier.Healthy = true
			if stats, err := store.Stats(tctx); err == nil {
				tier.Entries = stats.Entries
				tier.SizeBytes = stats.SizeBytes
				if m.metrics != nil {
					m.metrics.Entries.WithLabelValues(string(store.Level())).Set(float64(stats.Entries))
					m.metrics.SizeBytes.WithLabelValues(string(store.Level())).Set(float64(stats.SizeBytes))
				}
			}
		}
		cancel()

		report.Tiers = append(report.Tiers, tier)
	}
	return report
}

// Config returns the current configuration snapshot.
func (m *Manager) Config() *configstore.Settings {
	return m.cfg.Snapshot()
}

// UpdateConfig validates and atomically applies a new configuration
// snapshot. Non-structural fields apply live: resizable tiers are re-bounded
// immediately and the background loops pick up new intervals through the
// config watch. Structural changes (tier enablement) are accepted but
// flagged as requiring a restart.
func (m *Manager) UpdateConfig(next configstore.Settings) (restartRequired bool, err error) {
	restartRequired, err = m.cfg.Update(next)
	if err != nil {
		return false, err
	}

	snap := m.cfg.Snapshot()
	for _, store := range m.stores {
		if store.Level() != LevelL1 {
			continue
		}
		if r, ok := store.(Resizer); ok {
			r.Resize(snap.L1.MaxCapacity, int64(snap.L1.MaxSizeMB)*1024*1024)
		}
	}
	return restartRequired, nil
}

// Health reports whether every enabled tier is reachable.
func (m *Manager) Health(ctx context.Context) error {
	snap := m.cfg.Snapshot()
	for _, store := range m.enabledStores(snap) {
		tctx, cancel := m.tierCtx(ctx)
		err := store.Health(tctx)
		cancel()
		if err != nil {
			return err
		}
	}
	return nil
}

// sweepLoop runs the expiry sweep and the L3 cleanup pass as independent,
// cancellable periodic tasks, each processing bounded batches per cycle.
// Interval changes arrive through the config watch and reset the tickers
// without a restart.
func (m *Manager) sweepLoop() {
	defer m.wg.Done()

	snap := m.cfg.Snapshot()
	sweepTicker := time.NewTicker(snap.SweepInterval)
	cleanupTicker := time.NewTicker(snap.L3CleanupInterval)
	defer sweepTicker.Stop()
	defer cleanupTicker.Stop()
	changes := m.cfg.Watch()

	for {
		select {
		case <-m.stopCh:
			return
		case <-sweepTicker.C:
			m.sweepOnce()
		case <-cleanupTicker.C:
			m.cleanupOnce()
		case <-changes:
			next := m.cfg.Snapshot()
			if next.SweepInterval != snap.SweepInterval {
				sweepTicker.Reset(next.SweepInterval)
			}
			if next.L3CleanupInterval != snap.L3CleanupInterval {
				cleanupTicker.Reset(next.L3CleanupInterval)
			}
			snap = next
		}
	}
}

// sweepOnce purges expired entries from the non-durable tiers.
func (m *Manager) sweepOnce() {
	snap := m.cfg.Snapshot()
	for _, store := range m.enabledStores(snap) {
		if store.Level() == LevelL3 {
			continue
		}
		tctx, cancel := m.tierCtx(context.Background())
		removed, err := store.RemoveExpired(tctx, sweepBatch)
		cancel()
		if err != nil {
			m.log.Warn("expiry sweep failed",
				logging.String("level", string(store.Level())), logging.Err(err))
			continue
		}
		if removed > 0 {
			m.log.Debug("expiry sweep removed entries",
				logging.String("level", string(store.Level())),
				logging.Int("removed", removed))
		}
	}
}

// cleanupOnce purges one bounded batch of expired rows from the durable tier.
func (m *Manager) cleanupOnce() {
	snap := m.cfg.Snapshot()
	for _, store := range m.enabledStores(snap) {
		if store.Level() != LevelL3 {
			continue
		}
		tctx, cancel := m.tierCtx(context.Background())
		removed, err := store.RemoveExpired(tctx, snap.L3CleanupBatch)
		cancel()
		if err != nil {
			m.log.Warn("persistent tier cleanup failed", logging.Err(err))
			continue
		}
		if removed > 0 {
			m.log.Debug("persistent tier cleanup removed rows", logging.Int("removed", removed))
		}
	}
}

// observe records an operation latency sample.
func (m *Manager) observe(operation string, start time.Time) {
	if m.metrics != nil {
		m.metrics.OpDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
