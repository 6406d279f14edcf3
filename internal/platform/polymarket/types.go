// Package polymarket provides clients for the Polymarket real-time data
// service and the public Data API.
package polymarket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

// TradeMessage is a public trade as published by the RTDS activity topic and
// returned by the Data API /trades endpoint. Both use the same field names.
type TradeMessage struct {
	ProxyWallet     string      `json:"proxyWallet"`
	Side            string      `json:"side"`
	Asset           string      `json:"asset"`
	ConditionID     string      `json:"conditionId"`
	Size            json.Number `json:"size"`
	Price           json.Number `json:"price"`
	Timestamp       json.Number `json:"timestamp"`
	Title           string      `json:"title,omitempty"`
	Slug            string      `json:"slug,omitempty"`
	Outcome         string      `json:"outcome,omitempty"`
	OutcomeIndex    int         `json:"outcomeIndex,omitempty"`
	TransactionHash string      `json:"transactionHash,omitempty"`
}

// Raw converts m into the venue-neutral payload the normalizer accepts.
func (m TradeMessage) Raw() domain.RawTrade {
	return domain.RawTrade{
		MarketID:  m.ConditionID,
		AssetID:   m.Asset,
		Outcome:   m.Outcome,
		Wallet:    m.ProxyWallet,
		Side:      m.Side,
		Price:     m.Price.String(),
		Size:      m.Size.String(),
		Timestamp: unixOf(m.Timestamp),
		TxHash:    m.TransactionHash,
	}
}

// unixOf accepts integer or fractional timestamps. Unparseable values yield
// zero, which the normalizer rejects.
func unixOf(n json.Number) int64 {
	if v, err := n.Int64(); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(n.String()), 64); err == nil {
		return int64(f)
	}
	return 0
}

// Envelope is the outer RTDS message.
type Envelope struct {
	Topic     string          `json:"topic"`
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Subscription selects one RTDS topic and message type. Filters is an
// optional topic-specific JSON filter string.
type Subscription struct {
	Topic   string `json:"topic"`
	Type    string `json:"type"`
	Filters string `json:"filters,omitempty"`
}

// Command is sent to RTDS to change subscriptions.
type Command struct {
	Action        string         `json:"action"`
	Subscriptions []Subscription `json:"subscriptions"`
}

// TradesSubscription is the activity feed of public trades.
func TradesSubscription() Subscription {
	return Subscription{Topic: "activity", Type: "trades"}
}

// checkHTTPStatus maps non-2xx responses to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
