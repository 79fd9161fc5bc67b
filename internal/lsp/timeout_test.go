package lsp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeoutFirstCallSeed(t *testing.T) {
	p := NewTimeoutPolicy()
	assert.Equal(t, 2*time.Second, p.TimeoutFor("rust", OpInitialize))
	assert.Equal(t, 200*time.Millisecond, p.TimeoutFor("rust", OpDocumentSymbol))

	// After the first sample the normal value applies.
	p.Record("rust", OpDocumentSymbol, 50*time.Millisecond, true)
	assert.Equal(t, 1*time.Second, p.TimeoutFor("rust", OpDocumentSymbol))
}

func TestTimeoutGrowsOnConsecutiveFailures(t *testing.T) {
	p := NewTimeoutPolicy()
	p.Record("go", OpReferences, time.Millisecond, true) // seed

	for i := 0; i < 3; i++ {
		p.Record("go", OpReferences, time.Second, false)
	}
	grown := p.TimeoutFor("go", OpReferences)
	assert.Equal(t, 2250*time.Millisecond, grown, "1.5s * 1.5")

	// Another streak of three grows again, capped at the ceiling.
	for i := 0; i < 12; i++ {
		p.Record("go", OpReferences, time.Second, false)
	}
	assert.Equal(t, 3*time.Second, p.TimeoutFor("go", OpReferences))
}

func TestTimeoutShrinksAfterSuccessStreak(t *testing.T) {
	p := NewTimeoutPolicy()
	p.Record("go", OpReferences, time.Millisecond, true)
	for i := 0; i < 3; i++ {
		p.Record("go", OpReferences, time.Second, false)
	}
	grown := p.TimeoutFor("go", OpReferences)
	assert.Greater(t, grown, 1500*time.Millisecond)

	for i := 0; i < 10; i++ {
		p.Record("go", OpReferences, 10*time.Millisecond, true)
	}
	shrunk := p.TimeoutFor("go", OpReferences)
	assert.Less(t, shrunk, grown)
	assert.GreaterOrEqual(t, shrunk, 1500*time.Millisecond, "never below normal")
}

func TestTimeoutFailureResetsSuccessStreak(t *testing.T) {
	p := NewTimeoutPolicy()
	p.Record("go", OpHover, time.Millisecond, true)
	for i := 0; i < 3; i++ {
		p.Record("go", OpHover, time.Second, false)
	}
	grown := p.TimeoutFor("go", OpHover)

	// 9 successes then a failure: no shrink yet.
	for i := 0; i < 9; i++ {
		p.Record("go", OpHover, time.Millisecond, true)
	}
	p.Record("go", OpHover, time.Second, false)
	assert.Equal(t, grown, p.TimeoutFor("go", OpHover))
}

func TestObservedLatenciesWindow(t *testing.T) {
	p := NewTimeoutPolicy()
	for i := 0; i < 60; i++ {
		p.Record("rust", OpDefinition, time.Duration(i)*time.Millisecond, true)
	}
	window := p.ObservedLatencies("rust", OpDefinition)
	assert.Len(t, window, latencyWindow)
	assert.Equal(t, 10*time.Millisecond, window[0], "oldest surviving sample")
	assert.Equal(t, 59*time.Millisecond, window[len(window)-1])
}

func TestUnknownOperationGetsDefaults(t *testing.T) {
	p := NewTimeoutPolicy()
	assert.Equal(t, 500*time.Millisecond, p.TimeoutFor("rust", "exotic-op"))
}
