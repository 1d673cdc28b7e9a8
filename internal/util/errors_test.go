package util

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSentinelWrapping(t *testing.T) {
	require.ErrorIs(t, ErrNoExtractableText, ErrExtraction)
	require.ErrorIs(t, ErrEncryptedPDF, ErrExtraction)
	require.NotErrorIs(t, ErrEmbedding, ErrExtraction)
}

func TestUserMessageHidesDetails(t *testing.T) {
	err := fmt.Errorf("%w: openai embedding error 500: {\"secret\":\"/srv/uploads/x.pdf\"}", ErrEmbedding)
	msg := UserMessage(err)
	require.NotContains(t, msg, "secret")
	require.NotContains(t, msg, "/srv")
	require.NotEmpty(t, msg)

	require.Contains(t, UserMessage(fmt.Errorf("open: %w", ErrNoExtractableText)), "No extractable text")
	require.Empty(t, UserMessage(nil))
	require.NotEmpty(t, UserMessage(errors.New("boom")))
}
