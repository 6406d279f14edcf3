// Package ledger keeps cross-market aggregates per wallet and caches each
// wallet's market-maker classification.
package ledger

import (
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/insiderwatch/internal/classifier"
	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

const shardCount = 64

// classifierState is swapped atomically on reconfiguration. The generation
// invalidates every cached classification computed with older parameters.
type classifierState struct {
	params         classifier.Params
	recomputeEvery int
	generation     uint64
}

type entry struct {
	stats   domain.WalletStats
	markets map[string]struct{}
	days    map[int64]struct{}

	computed      bool
	generation    uint64
	sinceComputed int
	result        classifier.Result
	dirty         bool
}

type shard struct {
	mu      sync.Mutex
	wallets map[string]*entry
}

// Ledger is safe for concurrent use. Updates to one wallet are serialized by
// the wallet's shard lock; wallets on different shards proceed in parallel.
type Ledger struct {
	shards [shardCount]shard
	state  atomic.Pointer[classifierState]
}

// New creates an empty ledger. Classifications are recomputed once a wallet
// has recorded recomputeEvery trades since the previous computation.
func New(params classifier.Params, recomputeEvery int) *Ledger {
	l := &Ledger{}
	for i := range l.shards {
		l.shards[i].wallets = make(map[string]*entry)
	}
	l.SetClassifier(params, recomputeEvery)
	return l
}

// SetClassifier replaces the classifier parameters. Cached classifications
// are recomputed lazily on their next Classify.
func (l *Ledger) SetClassifier(params classifier.Params, recomputeEvery int) {
	if recomputeEvery < 1 {
		recomputeEvery = 1
	}
	var gen uint64
	if cur := l.state.Load(); cur != nil {
		gen = cur.generation + 1
	}
	l.state.Store(&classifierState{params: params, recomputeEvery: recomputeEvery, generation: gen})
}

func (l *Ledger) shardFor(address string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(address))
	return &l.shards[h.Sum32()%shardCount]
}

// Record applies t to its wallet's aggregates and returns the wallet's trade
// count from before t.
func (l *Ledger) Record(t domain.Trade) int {
	sh := l.shardFor(t.Wallet)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.wallets[t.Wallet]
	if !ok {
		e = &entry{
			stats:   domain.WalletStats{Address: t.Wallet, FirstSeenAt: t.Timestamp},
			markets: make(map[string]struct{}),
			days:    make(map[int64]struct{}),
		}
		sh.wallets[t.Wallet] = e
	}

	prior := e.stats.TradeCount
	s := &e.stats
	s.TradeCount++
	s.TotalVolumeUSD += t.USDValue
	switch t.Side {
	case domain.SideBuy:
		s.BuyVolumeUSD += t.USDValue
	case domain.SideSell:
		s.SellVolumeUSD += t.USDValue
	}
	e.markets[t.MarketID] = struct{}{}
	e.days[dayOf(t.Timestamp)] = struct{}{}
	s.DistinctMarkets = len(e.markets)
	s.ActiveDays = len(e.days)
	if t.Timestamp.Before(s.FirstSeenAt) {
		s.FirstSeenAt = t.Timestamp
	}
	if t.Timestamp.After(s.LastSeenAt) {
		s.LastSeenAt = t.Timestamp
	}
	e.sinceComputed++
	e.dirty = true
	return prior
}

// Classify returns the wallet's market-maker classification, recomputing it
// when it is missing or stale. The second result is false for unknown wallets.
func (l *Ledger) Classify(address string) (classifier.Result, bool) {
	sh := l.shardFor(address)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.wallets[address]
	if !ok {
		return classifier.Result{}, false
	}
	l.refresh(e)
	return e.result, true
}

// refresh recomputes e's classification if needed. Caller holds the shard lock.
func (l *Ledger) refresh(e *entry) {
	st := l.state.Load()
	if e.computed && e.generation == st.generation && e.sinceComputed < st.recomputeEvery {
		return
	}
	prev := e.result
	e.result = classifier.Classify(e.stats, st.params)
	e.computed = true
	e.generation = st.generation
	e.sinceComputed = 0
	if prev != e.result {
		e.dirty = true
	}
}

// Lookup returns a copy of the wallet's stats including its cached
// classification.
func (l *Ledger) Lookup(address string) (domain.WalletStats, bool) {
	sh := l.shardFor(address)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.wallets[address]
	if !ok {
		return domain.WalletStats{}, false
	}
	return e.snapshot(), true
}

func (e *entry) snapshot() domain.WalletStats {
	s := e.stats
	s.IsMarketMaker = e.result.IsMarketMaker
	s.MarketMakerScore = e.result.Score
	return s
}

// DrainDirty returns the wallets changed since the previous drain, sorted by
// address, and clears their dirty flags.
func (l *Ledger) DrainDirty() []domain.WalletStats {
	var out []domain.WalletStats
	for i := range l.shards {
		sh := &l.shards[i]
		sh.mu.Lock()
		for _, e := range sh.wallets {
			if e.dirty {
				out = append(out, e.snapshot())
				e.dirty = false
			}
		}
		sh.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Prune drops wallets whose last trade is before cutoff and returns how many
// were removed.
func (l *Ledger) Prune(cutoff time.Time) int {
	removed := 0
	for i := range l.shards {
		sh := &l.shards[i]
		sh.mu.Lock()
		for addr, e := range sh.wallets {
			if e.stats.LastSeenAt.Before(cutoff) {
				delete(sh.wallets, addr)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked wallets.
func (l *Ledger) Len() int {
	n := 0
	for i := range l.shards {
		sh := &l.shards[i]
		sh.mu.Lock()
		n += len(sh.wallets)
		sh.mu.Unlock()
	}
	return n
}

func dayOf(t time.Time) int64 {
	return t.UTC().Unix() / 86400
}
