// Package detector turns a market snapshot into scored signals.
//
// Each detector is a pure function of its inputs: the same snapshot, wallet
// classifications and thresholds always produce the same signals.
package detector

import (
	"errors"
	"fmt"
	"sort"

	"github.com/alanyoungcy/insiderwatch/internal/classifier"
	"github.com/alanyoungcy/insiderwatch/internal/config"
	"github.com/alanyoungcy/insiderwatch/internal/domain"
	"github.com/alanyoungcy/insiderwatch/internal/market"
)

var (
	// ErrPanic wraps a recovered detector panic.
	ErrPanic = errors.New("detector: panic")
	// ErrInvalidScore reports a signal with a NaN, infinite or negative score.
	ErrInvalidScore = errors.New("detector: invalid score")
)

// WalletView is the read-only wallet ledger surface detectors consult.
type WalletView interface {
	Classify(address string) (classifier.Result, bool)
	Lookup(address string) (domain.WalletStats, bool)
}

// Detector inspects a snapshot and returns zero or more signals. Empty or
// malformed history yields no signals and no error.
type Detector interface {
	Name() domain.DetectorName
	Detect(snap market.Snapshot, wallets WalletView, cfg *config.DetectionConfig) ([]domain.Signal, error)
}

// FaultReporter receives detector failures. Faults never abort a pass.
type FaultReporter interface {
	DetectorFault(marketID string, name domain.DetectorName, err error)
}

// Default returns one instance of every detector.
func Default() []Detector {
	return []Detector{
		Volume{},
		Whale{},
		Price{},
		Coordination{},
		FreshWallet{},
	}
}

// Run executes detectors in their fixed order and merges their signals. A
// detector that panics or errors contributes nothing; invalid signals are
// dropped. Every such fault is reported to faults, which may be nil.
func Run(detectors []Detector, snap market.Snapshot, wallets WalletView, cfg *config.DetectionConfig, faults FaultReporter) []domain.Signal {
	ordered := make([]Detector, len(detectors))
	copy(ordered, detectors)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Name().Rank() < ordered[j].Name().Rank()
	})

	report := func(name domain.DetectorName, err error) {
		if faults != nil {
			faults.DetectorFault(snap.MarketID, name, err)
		}
	}

	var out []domain.Signal
	for _, d := range ordered {
		signals, err := safeDetect(d, snap, wallets, cfg)
		if err != nil {
			report(d.Name(), err)
			continue
		}
		for _, s := range signals {
			if !s.Valid() {
				report(d.Name(), fmt.Errorf("%w: %s %v", ErrInvalidScore, s.Kind, s.Score))
				continue
			}
			out = append(out, s)
		}
	}
	SortSignals(out)
	return out
}

func safeDetect(d Detector, snap market.Snapshot, wallets WalletView, cfg *config.DetectionConfig) (signals []domain.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			signals = nil
			err = fmt.Errorf("%w: %s: %v", ErrPanic, d.Name(), r)
		}
	}()
	return d.Detect(snap, wallets, cfg)
}

// SortSignals orders signals by detector rank, kind, descending score and
// first evidence wallet.
func SortSignals(signals []domain.Signal) {
	sort.SliceStable(signals, func(i, j int) bool {
		a, b := signals[i], signals[j]
		if ra, rb := a.Detector.Rank(), b.Detector.Rank(); ra != rb {
			return ra < rb
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return firstWallet(a) < firstWallet(b)
	})
}

func firstWallet(s domain.Signal) string {
	if len(s.Evidence.Wallets) == 0 {
		return ""
	}
	return s.Evidence.Wallets[0]
}

// isMarketMaker reports whether the view classifies address as a market
// maker. Unknown wallets and a nil view are never market makers.
func isMarketMaker(wallets WalletView, address string) bool {
	if wallets == nil {
		return false
	}
	r, ok := wallets.Classify(address)
	return ok && r.IsMarketMaker
}
