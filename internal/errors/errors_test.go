package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLspRequestErrorWrapping(t *testing.T) {
	underlying := io.ErrClosedPipe
	err := &LspRequestError{
		Language:   "rust",
		Method:     "textDocument/documentSymbol",
		Cause:      CauseTransportClosed,
		Underlying: underlying,
	}

	assert.True(t, IsLspFailure(err))
	assert.True(t, IsLspFailure(fmt.Errorf("wrapped: %w", err)))
	assert.ErrorIs(t, err, underlying)
	assert.Contains(t, err.Error(), "transport-closed")
	assert.Contains(t, err.Error(), "rust")
}

func TestLspRequestErrorWithCode(t *testing.T) {
	err := &LspRequestError{
		Language: "go", Method: "workspace/symbol",
		Cause: CauseServerError, Code: -32603,
		Underlying: stderrors.New("internal error"),
	}
	assert.Contains(t, err.Error(), "-32603")
}

func TestFileErrorUnwrap(t *testing.T) {
	underlying := stderrors.New("permission denied")
	err := NewFileError("read", "src/a.rs", underlying)
	assert.ErrorIs(t, err, underlying)
	assert.Contains(t, err.Error(), "src/a.rs")
}

func TestStoreSentinelsWrap(t *testing.T) {
	err := fmt.Errorf("%w: page 12 torn", ErrStoreCorrupt)
	assert.ErrorIs(t, err, ErrStoreCorrupt)
	assert.NotErrorIs(t, err, ErrStoreSchemaMismatch)
}

func TestMultiError(t *testing.T) {
	assert.Nil(t, NewMultiError(nil))
	assert.Nil(t, NewMultiError([]error{nil, nil}))

	a := stderrors.New("a")
	b := stderrors.New("b")
	merr := NewMultiError([]error{a, nil, b})
	require.NotNil(t, merr)
	assert.ErrorIs(t, merr, a)
	assert.ErrorIs(t, merr, b)
	assert.Contains(t, merr.Error(), "2 errors")

	single := NewMultiError([]error{a})
	assert.Equal(t, "a", single.Error())
}
