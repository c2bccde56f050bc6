package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessageIncludesContextAndCause(t *testing.T) {
	cause := errors.New("status 503")
	err := Wrap(cause, KindTranslation, "chunk failed").
		WithContext("chunk", 4).
		WithContext("document", "a.pdf")

	assert.Equal(t, "[TranslationError] chunk failed | context: chunk=4, document=a.pdf | cause: status 503", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestIsKindWalksChain(t *testing.T) {
	inner := New(KindTransientTranslation, "429")
	outer := Wrap(inner, KindTranslation, "retries exhausted")
	wrapped := fmt.Errorf("document: %w", outer)

	assert.True(t, IsKind(wrapped, KindTranslation))
	assert.True(t, IsKind(wrapped, KindTransientTranslation))
	assert.False(t, IsKind(wrapped, KindConfig))
	assert.False(t, IsKind(errors.New("plain"), KindUnknown))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindConfig, KindOf(New(KindConfig, "bad")))
	assert.Equal(t, KindCanceled, KindOf(context.Canceled))
	assert.Equal(t, KindUnknown, KindOf(errors.New("x")))
	assert.NotEmpty(t, Advice(New(KindExtraction, "x")))
}
