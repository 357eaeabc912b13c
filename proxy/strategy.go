package proxy

import (
	"strings"

	"github.com/kbukum/fetchguard/errors"
)

// Strategy selects how a Manager picks the next proxy.
type Strategy string

const (
	StrategyRoundRobin Strategy = "round_robin"
	StrategyRandom     Strategy = "random"
	StrategySmart      Strategy = "smart"
)

// ParseStrategy resolves a strategy name. An empty name selects round_robin.
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(name))); s {
	case "":
		return StrategyRoundRobin, nil
	case StrategyRoundRobin, StrategyRandom, StrategySmart:
		return s, nil
	default:
		return "", errors.Configuration("proxy.rotation", "unknown rotation strategy "+name)
	}
}

// String returns the strategy name.
func (s Strategy) String() string {
	return string(s)
}
