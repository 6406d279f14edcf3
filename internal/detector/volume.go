package detector

import (
	"github.com/alanyoungcy/insiderwatch/internal/config"
	"github.com/alanyoungcy/insiderwatch/internal/domain"
	"github.com/alanyoungcy/insiderwatch/internal/market"
)

// Volume flags an open baseline window whose USD volume is far above the
// closed-window baseline.
type Volume struct{}

var _ Detector = Volume{}

func (Volume) Name() domain.DetectorName { return domain.DetectorVolume }

// ZScore returns the open window's Z score against the closed windows. It is
// 0 when fewer than minWindows windows have closed or the baseline has no
// spread.
func ZScore(s market.BaselineStats, minWindows int) float64 {
	if !s.Ready(minWindows) || s.StdDev == 0 {
		return 0
	}
	return (s.Current - s.Mean) / s.StdDev
}

func (Volume) Detect(snap market.Snapshot, _ WalletView, cfg *config.DetectionConfig) ([]domain.Signal, error) {
	if snap.Empty() {
		return nil, nil
	}
	st := snap.Volume
	z := ZScore(st, cfg.MinimumBaselineWindows)
	if z < cfg.Volume.ZScoreThreshold || st.Mean <= 0 {
		return nil, nil
	}
	ratio := st.Current / st.Mean
	if ratio < cfg.Volume.VolumeSpikeMultiplier {
		return nil, nil
	}

	var open []market.Observation
	for _, o := range snap.Observations {
		if !o.Trade.Timestamp.Before(st.CurrentStart) {
			open = append(open, o)
		}
	}

	return []domain.Signal{{
		Detector:  domain.DetectorVolume,
		Kind:      "volume_spike",
		MarketID:  snap.MarketID,
		Score:     z,
		Direction: netDirection(open),
		Evidence: domain.Evidence{
			VolumeUSD:      st.Current,
			Multiplier:     ratio,
			Ratio:          ratio,
			WindowStart:    st.CurrentStart,
			WindowEnd:      st.CurrentStart.Add(st.Width),
			BaselineBacked: true,
			Metrics: map[string]float64{
				"z_score":       z,
				"baseline_mean": st.Mean,
				"baseline_std":  st.StdDev,
				"windows":       float64(st.Windows),
				"trades":        float64(len(open)),
			},
		},
	}}, nil
}
