package models

import (
	"fmt"
	"strings"
)

// RiskLevel is the ordered danger scale. The numeric value is both the
// reference table id and the ordinal risk value.
type RiskLevel int

const (
	RiskLow     RiskLevel = 1
	RiskMedium  RiskLevel = 2
	RiskHigh    RiskLevel = 3
	RiskExtreme RiskLevel = 4
)

var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskExtreme}

type riskInfo struct {
	key   string
	name  string
	color string
}

var riskMeta = [...]riskInfo{
	RiskLow:     {"low", "Low Risk", "#4CAF50"},
	RiskMedium:  {"medium", "Medium Risk", "#FF9800"},
	RiskHigh:    {"high", "High Risk", "#F44336"},
	RiskExtreme: {"extreme", "Extreme Risk", "#9C27B0"},
}

func (r RiskLevel) info() riskInfo {
	if !r.Valid() {
		return riskInfo{key: "unknown", name: "Unknown"}
	}
	return riskMeta[r]
}

func (r RiskLevel) ID() int       { return int(r) }
func (r RiskLevel) Ordinal() int  { return int(r) }
func (r RiskLevel) Key() string   { return r.info().key }
func (r RiskLevel) Name() string  { return r.info().name }
func (r RiskLevel) Color() string { return r.info().color }

func (r RiskLevel) String() string { return r.Key() }

func (r RiskLevel) Valid() bool {
	return r >= RiskLow && r <= RiskExtreme
}

// ParseRiskLevel accepts a risk key ("high") or its numeric id ("3").
func ParseRiskLevel(s string) (RiskLevel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, r := range RiskLevels {
		if s == r.Key() || s == fmt.Sprint(r.ID()) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown risk level: %q", s)
}
