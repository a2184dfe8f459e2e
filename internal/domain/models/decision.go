package models

import "time"

// DecisionStatus separates "no signal yet" from a usable decision.
type DecisionStatus string

const (
	StatusInsufficientHistory DecisionStatus = "insufficient_history"
	StatusNotConfirmed        DecisionStatus = "not_confirmed"
	StatusConfirmed           DecisionStatus = "confirmed"
)

// Decision is the answer to a decision query against the latest signal.
type Decision struct {
	Date      time.Time      `json:"date"`
	Signal    float64        `json:"signal"`
	Bucket    Bucket         `json:"bucket"`
	Status    DecisionStatus `json:"status"`
	Confirmed bool           `json:"confirmed"`
	Recent    []Bucket       `json:"recent"`
	Current   WeightVector   `json:"current"`
	Target    WeightVector   `json:"target"`
	Delta     WeightVector   `json:"delta"`
	Tilted    bool           `json:"tilted"`
}

// Actionable reports whether the decision asks for any trade.
func (d *Decision) Actionable() bool {
	return d.Confirmed && d.Bucket.IsExtreme() && d.Delta != (WeightVector{})
}
