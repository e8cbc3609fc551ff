package identity

import (
	"math/rand"

	"github.com/danl5/ringelect/pkg/config"
)

// relaySeedOffset keeps the relay draw independent from the uid draw of the same rank
const relaySeedOffset = 7919

// IsRelay is the passive relay policy of a single process: an independent
// draw from the process's own source, made once at startup. Nothing is
// agreed with the rest of the ring.
func IsRelay(rank int, seed int64, ratio float64) bool {
	if ratio <= 0 {
		return false
	}
	rnd := rand.New(rand.NewSource(seed + relaySeedOffset + int64(rank)))
	return rnd.Float64() < ratio
}

// Relays returns, per rank, whether the process is a relay. Only the
// passthrough variant draws relays, and an initiator is never one.
func Relays(cfg *config.Config, initiators []bool) []bool {
	relays := make([]bool, len(initiators))
	if len(cfg.Relays) > 0 {
		for _, r := range cfg.Relays {
			relays[r] = true
		}
		return relays
	}
	if !cfg.Passthrough {
		return relays
	}
	for rank := range relays {
		if initiators[rank] {
			continue
		}
		relays[rank] = IsRelay(rank, cfg.Seed, cfg.RelayRatio)
	}
	return relays
}
