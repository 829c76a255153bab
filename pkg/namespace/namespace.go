// Package namespace implements the multi-tenant supervisor (spec
// component C10): a directory of independently-configured Collections,
// each fully isolated under its own subdirectory, gated by a per-namespace
// quota and status state machine. It generalizes a named-sub-collection
// bookkeeping scheme (many logical collections sharing one store) into
// fully isolated collections with their own on-disk files, per spec §4.9.
package namespace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/collection"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/logging"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/text"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/vector"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/verrors"
)

// Status is a namespace's lifecycle state, per spec §4.9.
type Status int

const (
	Pending Status = iota
	Active
	Suspended
	ReadOnly
	PendingDeletion
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Active:
		return "active"
	case Suspended:
		return "suspended"
	case ReadOnly:
		return "read_only"
	case PendingDeletion:
		return "pending_deletion"
	default:
		return "unknown"
	}
}

// Quota bounds a namespace's resource consumption, per spec §4.9.
type Quota struct {
	MaxRPS               float64 // token-bucket refill rate; 0 means unlimited
	MaxBurst             float64 // token-bucket capacity; defaults to MaxRPS if 0
	MaxCollections       int     // supervisor-wide ceiling on namespace count; 0 means unlimited
	MaxVectors           int64   // hard ceiling on live records; 0 means unlimited
	MaxStorageBytes      int64   // hard ceiling on compressed record storage; 0 means unlimited
	MaxDimension         int     // vector dimension this namespace's collection accepts; 0 means unrestricted
	MaxResultsPerQuery   int     // hard ceiling on a single Query/HybridQuery's K; 0 means unlimited
	MaxBatchSize         int     // hard ceiling on ops per BatchExecute call; 0 means unlimited
	MaxConcurrentQueries int     // hard ceiling on simultaneously in-flight queries; 0 means unlimited
}

// manifest is the on-disk (dir/namespace.json) record of a namespace's
// configuration, so Supervisor.Open can rediscover namespaces created by a
// previous process.
type manifest struct {
	ID         string    `json:"id"`
	InstanceID string    `json:"instance_id"`
	Status     Status    `json:"status"`
	Quota      Quota     `json:"quota"`
	Dimension  int       `json:"dimension"`
	Metric     uint8     `json:"metric"`
	Tokenizer  int       `json:"tokenizer"`
	CreatedAt  time.Time `json:"created_at"`
}

// configOf reconstructs the Collection config a namespace was created
// with from its persisted manifest fields. Only the dimension/metric/
// tokenizer survive a restart; every other Config field falls back to
// DefaultConfig's values via Collection.Open's applyDefaults.
func configOf(m manifest) collection.Config {
	cfg := collection.DefaultConfig(m.Dimension, vector.Metric(m.Metric))
	cfg.Tokenizer = text.TokenizerKind(m.Tokenizer)
	return cfg
}

// Namespace is one tenant: a status, a quota-enforcing rate limiter, and a
// lazily-opened Collection.
type Namespace struct {
	mu sync.RWMutex

	id         string
	instanceID string
	dir        string
	status     Status
	quota      Quota
	bucket     *tokenBucket
	vectorCap  int64
	querySlots chan struct{}

	cfg  collection.Config
	coll *collection.Collection
}

// ID returns the namespace's caller-supplied id.
func (n *Namespace) ID() string { return n.id }

// InstanceID returns the namespace's immutable creation-time identifier
// (distinct from ID, which a caller could in principle reuse after
// deletion); generated once via uuid at CreateNamespace time.
func (n *Namespace) InstanceID() string { return n.instanceID }

// Status returns the namespace's current lifecycle state.
func (n *Namespace) Status() Status {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}

// Collection lazily opens (or returns the already-open) Collection for
// this namespace.
func (n *Namespace) Collection() (*collection.Collection, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.coll != nil {
		return n.coll, nil
	}
	c, err := collection.Open(n.dir, n.cfg)
	if err != nil {
		return nil, verrors.Wrap("namespace.Collection", verrors.IO, err)
	}
	n.coll = c
	return c, nil
}

// Close closes the namespace's Collection, if open.
func (n *Namespace) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.coll == nil {
		return nil
	}
	err := n.coll.Close()
	n.coll = nil
	return err
}

// Allow checks the namespace's status and rate-limit quota, returning a
// wrapped Validation error (QuotaExceeded) or a Conflict error
// (ErrStatusForbidden) if the call should be rejected, per spec §4.9.
// write=true also rejects ReadOnly namespaces.
func (n *Namespace) Allow(write bool) error {
	n.mu.RLock()
	status := n.status
	n.mu.RUnlock()

	switch status {
	case Suspended, PendingDeletion:
		return verrors.Wrap("namespace.Allow", verrors.Conflict, verrors.ErrStatusForbidden)
	case ReadOnly:
		if write {
			return verrors.Wrap("namespace.Allow", verrors.Conflict, verrors.ErrStatusForbidden)
		}
	}

	if n.bucket != nil && !n.bucket.Allow(1) {
		return verrors.NewQuotaExceeded("namespace.Allow", "rps")
	}
	return nil
}

// CheckRecordCap returns a QuotaExceeded error if adding n more records
// would exceed the namespace's MaxVectors ceiling. Called at upsert time,
// before the record is written to the underlying Collection.
func (ns *Namespace) CheckRecordCap(currentLive int, n int) error {
	if ns.vectorCap <= 0 {
		return nil
	}
	if int64(currentLive+n) > ns.vectorCap {
		return verrors.NewQuotaExceeded("namespace.CheckRecordCap", "max_vectors")
	}
	return nil
}

// CheckStorageBytes returns a QuotaExceeded error if a collection's
// compressed record storage already at or beyond MaxStorageBytes. Called
// at upsert time alongside CheckRecordCap, using the compressed-bytes
// figure from collection.Stats().Records.
func (ns *Namespace) CheckStorageBytes(currentBytes int64) error {
	if ns.quota.MaxStorageBytes <= 0 {
		return nil
	}
	if currentBytes >= ns.quota.MaxStorageBytes {
		return verrors.NewQuotaExceeded("namespace.CheckStorageBytes", "max_storage_bytes")
	}
	return nil
}

// CheckBatchSize returns a QuotaExceeded error if n exceeds MaxBatchSize.
// Called by a batch executor before dispatching ops to the namespace's
// Collection.BatchExecute.
func (ns *Namespace) CheckBatchSize(n int) error {
	if ns.quota.MaxBatchSize <= 0 {
		return nil
	}
	if n > ns.quota.MaxBatchSize {
		return verrors.NewQuotaExceeded("namespace.CheckBatchSize", "max_batch_size")
	}
	return nil
}

// CheckResultsPerQuery returns a QuotaExceeded error if k exceeds
// MaxResultsPerQuery. Called at query entry before the request reaches the
// namespace's Collection.
func (ns *Namespace) CheckResultsPerQuery(k int) error {
	if ns.quota.MaxResultsPerQuery <= 0 {
		return nil
	}
	if k > ns.quota.MaxResultsPerQuery {
		return verrors.NewQuotaExceeded("namespace.CheckResultsPerQuery", "max_results_per_query")
	}
	return nil
}

// AcquireQuery reserves one of MaxConcurrentQueries in-flight slots,
// returning a release func to call when the query completes. If the quota
// is unset, AcquireQuery always succeeds and release is a no-op. Call at
// query entry, before running Query/HybridQuery; always call the returned
// release via defer.
func (ns *Namespace) AcquireQuery() (release func(), err error) {
	if ns.querySlots == nil {
		return func() {}, nil
	}
	select {
	case ns.querySlots <- struct{}{}:
		return func() { <-ns.querySlots }, nil
	default:
		return nil, verrors.NewQuotaExceeded("namespace.AcquireQuery", "max_concurrent_queries")
	}
}

// setStatusLocked transitions the namespace's status and persists the
// manifest. Caller holds n.mu.
func (n *Namespace) setStatusLocked(s Status) error {
	n.status = s
	return writeManifest(n.dir, manifest{
		ID: n.id, InstanceID: n.instanceID, Status: s, Quota: n.quota,
		Dimension: n.cfg.Dimension, Metric: uint8(n.cfg.Metric), Tokenizer: int(n.cfg.Tokenizer),
	})
}

func writeManifest(dir string, m manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "namespace.json"), data, 0o644)
}

func readManifest(dir string) (manifest, error) {
	var m manifest
	data, err := os.ReadFile(filepath.Join(dir, "namespace.json"))
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(data, &m)
	return m, err
}

// tokenBucket is a simple continuous-refill rate limiter, built per spec
// §4.9's "token-bucket RPS" wording.
type tokenBucket struct {
	mu       sync.Mutex
	rate     float64 // tokens/sec
	capacity float64
	tokens   float64
	last     time.Time
}

func newTokenBucket(rate, capacity float64) *tokenBucket {
	if capacity <= 0 {
		capacity = rate
	}
	return &tokenBucket{rate: rate, capacity: capacity, tokens: capacity, last: time.Now()}
}

func (b *tokenBucket) Allow(n float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(b.last).Seconds()
	b.last = now
	b.tokens += elapsed * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	if b.tokens < n {
		return false
	}
	b.tokens -= n
	return true
}

// Supervisor owns every Namespace under one root directory, per spec §4.9.
type Supervisor struct {
	mu             sync.RWMutex
	root           string
	namespaces     map[string]*Namespace
	logger         logging.Logger
	maxCollections int // supervisor-wide ceiling; set from the first CreateNamespace quota that specifies one
}

// Open scans root for existing namespace subdirectories (each containing a
// namespace.json manifest) and loads their metadata without opening their
// Collections (those open lazily on first use).
func Open(root string, logger logging.Logger) (*Supervisor, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, verrors.Wrap("namespace.Open", verrors.IO, err)
	}
	s := &Supervisor{root: root, namespaces: make(map[string]*Namespace), logger: logger}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, verrors.Wrap("namespace.Open", verrors.IO, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		m, err := readManifest(dir)
		if err != nil {
			logger.Warn("skipping directory without a namespace manifest", "dir", dir, "err", err)
			continue
		}
		s.namespaces[m.ID] = &Namespace{
			id: m.ID, instanceID: m.InstanceID, dir: dir, status: m.Status,
			quota: m.Quota, vectorCap: m.Quota.MaxVectors,
			bucket:     bucketFromQuota(m.Quota),
			querySlots: querySlotsFromQuota(m.Quota),
			cfg:        configOf(m),
		}
		if m.Quota.MaxCollections > 0 && s.maxCollections == 0 {
			s.maxCollections = m.Quota.MaxCollections
		}
	}
	return s, nil
}

func bucketFromQuota(q Quota) *tokenBucket {
	if q.MaxRPS <= 0 {
		return nil
	}
	return newTokenBucket(q.MaxRPS, q.MaxBurst)
}

// querySlotsFromQuota builds the buffered channel AcquireQuery uses as a
// counting semaphore; nil (unlimited) when the quota is unset.
func querySlotsFromQuota(q Quota) chan struct{} {
	if q.MaxConcurrentQueries <= 0 {
		return nil
	}
	return make(chan struct{}, q.MaxConcurrentQueries)
}

// CreateNamespace provisions a new namespace directory, writes its
// manifest in Pending status, flips it to Active, and returns the handle.
// cfg is the Collection configuration used the first time its Collection
// is opened.
func (s *Supervisor) CreateNamespace(id string, cfg collection.Config, quota Quota) (*Namespace, error) {
	if id == "" {
		return nil, verrors.Wrap("namespace.CreateNamespace", verrors.Validation, verrors.ErrInvalidConfig)
	}
	if quota.MaxDimension > 0 && cfg.Dimension != quota.MaxDimension {
		return nil, verrors.Wrap("namespace.CreateNamespace", verrors.Validation, verrors.ErrInvalidConfig)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.namespaces[id]; exists {
		return nil, verrors.Wrap("namespace.CreateNamespace", verrors.Conflict, verrors.ErrNamespaceExists)
	}
	if quota.MaxCollections > 0 && s.maxCollections == 0 {
		s.maxCollections = quota.MaxCollections
	}
	if s.maxCollectionsExceededLocked() {
		return nil, verrors.NewQuotaExceeded("namespace.CreateNamespace", "max_collections")
	}

	dir := filepath.Join(s.root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, verrors.Wrap("namespace.CreateNamespace", verrors.IO, err)
	}

	instanceID := uuid.NewString()
	ns := &Namespace{
		id: id, instanceID: instanceID, dir: dir, status: Pending,
		quota: quota, vectorCap: quota.MaxVectors, bucket: bucketFromQuota(quota),
		querySlots: querySlotsFromQuota(quota), cfg: cfg,
	}
	if err := ns.setStatusLocked(Pending); err != nil {
		return nil, verrors.Wrap("namespace.CreateNamespace", verrors.IO, err)
	}
	if err := ns.setStatusLocked(Active); err != nil {
		return nil, verrors.Wrap("namespace.CreateNamespace", verrors.IO, err)
	}

	s.namespaces[id] = ns
	s.logger.Info("namespace created", "id", id, "instance_id", instanceID)
	return ns, nil
}

// maxCollectionsExceededLocked reports whether creating one more namespace
// would exceed the supervisor-wide ceiling set by the first CreateNamespace
// call whose quota specifies MaxCollections (0 means unlimited). Caller
// holds s.mu.
func (s *Supervisor) maxCollectionsExceededLocked() bool {
	if s.maxCollections <= 0 {
		return false
	}
	return len(s.namespaces) >= s.maxCollections
}

// GetNamespace returns the namespace handle for id, or ErrNamespaceNotFound.
func (s *Supervisor) GetNamespace(id string) (*Namespace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ns, ok := s.namespaces[id]
	if !ok {
		return nil, verrors.Wrap("namespace.GetNamespace", verrors.NotFound, verrors.ErrNamespaceNotFound)
	}
	return ns, nil
}

// ListNamespaces returns every known namespace id.
func (s *Supervisor) ListNamespaces() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.namespaces))
	for id := range s.namespaces {
		ids = append(ids, id)
	}
	return ids
}

// SetStatus transitions namespace id to status and persists the change.
func (s *Supervisor) SetStatus(id string, status Status) error {
	ns, err := s.GetNamespace(id)
	if err != nil {
		return err
	}
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return ns.setStatusLocked(status)
}

// DeleteNamespace marks id PendingDeletion, closes its Collection if open,
// then physically removes its directory. Per spec §4.9, PendingDeletion is
// set first so concurrent callers observing Allow() see the rejection
// immediately, before the (potentially slow) directory removal completes.
func (s *Supervisor) DeleteNamespace(id string) error {
	s.mu.Lock()
	ns, ok := s.namespaces[id]
	if !ok {
		s.mu.Unlock()
		return verrors.Wrap("namespace.DeleteNamespace", verrors.NotFound, verrors.ErrNamespaceNotFound)
	}
	delete(s.namespaces, id)
	s.mu.Unlock()

	ns.mu.Lock()
	_ = ns.setStatusLocked(PendingDeletion)
	ns.mu.Unlock()

	if err := ns.Close(); err != nil {
		return verrors.Wrap("namespace.DeleteNamespace", verrors.IO, err)
	}
	if err := os.RemoveAll(ns.dir); err != nil {
		return verrors.Wrap("namespace.DeleteNamespace", verrors.IO, err)
	}
	return nil
}

// AggregateStats sums collection.Stats across every Active namespace, per
// spec §4.9 ("Aggregate statistics are sums across active namespaces").
// Namespaces that are Pending, Suspended, ReadOnly, or PendingDeletion are
// skipped; opening a namespace's Collection to read its stats does not
// change its status.
type AggregateStats struct {
	NamespaceCount int
	TotalRecords   int
	LiveRecords    int
	DeletedRecords int
}

func (s *Supervisor) AggregateStats() (AggregateStats, error) {
	s.mu.RLock()
	namespaces := make([]*Namespace, 0, len(s.namespaces))
	for _, ns := range s.namespaces {
		namespaces = append(namespaces, ns)
	}
	s.mu.RUnlock()

	var agg AggregateStats
	for _, ns := range namespaces {
		if ns.Status() != Active {
			continue
		}
		c, err := ns.Collection()
		if err != nil {
			return agg, err
		}
		stats := c.Stats()
		agg.NamespaceCount++
		agg.TotalRecords += stats.Records.Total
		agg.LiveRecords += stats.Records.Live
		agg.DeletedRecords += stats.Records.Deleted
	}
	return agg, nil
}
