package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLimited(t *testing.T) {
	data, err := ReadLimited(strings.NewReader("abcd"), 4)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(data))

	_, err = ReadLimited(strings.NewReader("abcde"), 4)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}
