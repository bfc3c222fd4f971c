package simulator

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/okian/workpulse/internal/observer"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	maxGapMs           = 400
)

// Interaction mix, as cumulative shares.
const (
	shareClick     = 0.30
	shareKeydown   = 0.55
	shareScroll    = 0.70
	shareMousemove = 1.0
)

var sampleKeys = []string{"a", "Z", "7", "Enter", "Space", "Backspace", "ArrowUp", "Shift", "Control", "F5", "Escape"}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

func randomIndex(n int) int {
	return int(getRandomFloat() * float64(n))
}

// generateInteractions creates n raw interactions starting at start, spaced
// by random gaps so that some of them fall inside throttle windows.
func generateInteractions(n int, start time.Time) []observer.Interaction {
	out := make([]observer.Interaction, n)
	at := start
	for i := range out {
		at = at.Add(time.Duration(randomIndex(maxGapMs)) * time.Millisecond)
		in := observer.Interaction{At: at}
		switch r := getRandomFloat(); {
		case r < shareClick:
			in.Type = "click"
		case r < shareKeydown:
			in.Type = "keydown"
			in.Key = sampleKeys[randomIndex(len(sampleKeys))]
		case r < shareScroll:
			in.Type = "scroll"
		case r < shareMousemove:
			in.Type = "mousemove"
		}
		out[i] = in
	}
	return out
}
