package domain

import (
	"fmt"
	"strings"
	"time"
)

// Severity orders alerts for channel floors.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// ParseSeverity parses a case-insensitive severity name.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return SeverityLow, nil
	case "MEDIUM":
		return SeverityMedium, nil
	case "HIGH":
		return SeverityHigh, nil
	case "CRITICAL":
		return SeverityCritical, nil
	default:
		return SeverityLow, fmt.Errorf("unknown severity %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	v, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// AlertType classifies an alert by its contributing detector.
type AlertType string

const (
	AlertVolumeSpike        AlertType = "VOLUME_SPIKE"
	AlertWhaleActivity      AlertType = "WHALE_ACTIVITY"
	AlertPriceMovement      AlertType = "UNUSUAL_PRICE_MOVEMENT"
	AlertCoordinatedTrading AlertType = "COORDINATED_TRADING"
	AlertFreshWallet        AlertType = "FRESH_WALLET"
	AlertComposite          AlertType = "COMPOSITE"
)

// Action is the advisory bias of a recommendation.
type Action string

const (
	ActionBuy     Action = "BUY"
	ActionSell    Action = "SELL"
	ActionMonitor Action = "MONITOR"
)

// Recommendation is an advisory directional bias, never a trade instruction.
type Recommendation struct {
	Action Action    `json:"action"`
	Bias   Direction `json:"bias"`
	Price  float64   `json:"price"`
}

// Alert is the merged result of one market's analysis pass. It always carries
// at least one signal and is not mutated after creation.
type Alert struct {
	ID                string         `json:"id"`
	MarketID          string         `json:"market_id"`
	Type              AlertType      `json:"alert_type"`
	Severity          Severity       `json:"severity"`
	Confidence        float64        `json:"confidence_score"`
	Signals           []Signal       `json:"signals"`
	Recommendation    Recommendation `json:"recommendation"`
	RecommendedAction string         `json:"recommended_action"`
	CreatedAt         time.Time      `json:"created_at"`
}

// DispatchStatus is the outcome of offering an alert to one channel.
type DispatchStatus string

const (
	DispatchSent          DispatchStatus = "sent"
	DispatchFailed        DispatchStatus = "failed"
	DispatchRateLimited   DispatchStatus = "rate_limited"
	DispatchBelowSeverity DispatchStatus = "below_severity"
	DispatchDuplicate     DispatchStatus = "duplicate"
)

// DispatchOutcome records what happened to an alert on one channel.
type DispatchOutcome struct {
	AlertID  string         `json:"alert_id"`
	MarketID string         `json:"market_id"`
	Channel  string         `json:"channel"`
	Status   DispatchStatus `json:"status"`
	Error    string         `json:"error,omitempty"`
	At       time.Time      `json:"at"`
}
