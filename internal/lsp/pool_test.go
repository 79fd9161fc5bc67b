package lsp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/symgraph/internal/config"
	sgerrors "github.com/standardbeagle/symgraph/internal/errors"
)

func TestPoolUnknownLanguage(t *testing.T) {
	p := NewPool(config.BuiltinAdapters(), t.TempDir(), NewTimeoutPolicy(), 2, time.Minute)
	defer p.Close()

	_, _, err := p.Acquire(context.Background(), "cobol")
	var lspErr *sgerrors.LspRequestError
	require.ErrorAs(t, err, &lspErr)
	assert.Equal(t, sgerrors.CauseUnsupported, lspErr.Cause)
}

func TestPoolClosedRejectsAcquire(t *testing.T) {
	p := NewPool(config.BuiltinAdapters(), t.TempDir(), NewTimeoutPolicy(), 2, time.Minute)
	p.Close()

	_, _, err := p.Acquire(context.Background(), "go")
	assert.ErrorIs(t, err, sgerrors.ErrPoolClosed)
}

func TestPoolCloseIsIdempotent(t *testing.T) {
	p := NewPool(config.BuiltinAdapters(), t.TempDir(), NewTimeoutPolicy(), 2, time.Minute)
	p.Close()
	p.Close()
}

func TestPoolSpawnMissingServer(t *testing.T) {
	// An adapter whose executable cannot exist forces the spawn error
	// path without any real language server installed.
	adapters := []config.Adapter{{
		ID:         "ghost",
		Extensions: []string{".ghost"},
		Command:    "definitely-not-a-real-language-server-binary",
	}}
	p := NewPool(adapters, t.TempDir(), NewTimeoutPolicy(), 1, time.Minute)
	defer p.Close()

	_, _, err := p.Acquire(context.Background(), "ghost")
	var lspErr *sgerrors.LspRequestError
	require.ErrorAs(t, err, &lspErr)
	assert.Equal(t, sgerrors.CauseTransportClosed, lspErr.Cause)
}

func TestPoolDoPropagatesAcquireError(t *testing.T) {
	p := NewPool(nil, t.TempDir(), NewTimeoutPolicy(), 1, time.Minute)
	defer p.Close()

	err := p.Do(context.Background(), "rust", func(c *Client) error { return nil })
	assert.True(t, sgerrors.IsLspFailure(err))
}
