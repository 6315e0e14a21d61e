package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeRetrieval, "fetch sdn.csv")

	assert.True(t, errors.Is(err, cause))
	assert.True(t, HasCode(err, CodeRetrieval))
	assert.Equal(t, "retrieval: fetch sdn.csv: connection refused", err.Error())
}

func TestHasCodeThroughWrapping(t *testing.T) {
	inner := New(CodeSchema, "wrong column count")
	outer := fmt.Errorf("decode sdn.csv: %w", inner)

	assert.True(t, HasCode(outer, CodeSchema))
	assert.False(t, HasCode(outer, CodeRetrieval))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeTemporalOrder, CodeOf(New(CodeTemporalOrder, "older snapshot")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("uncoded")))
}
