package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC32C(t *testing.T) {
	// Known answer for the Castagnoli polynomial.
	assert.Equal(t, uint32(0xE3069283), CRC32C([]byte("123456789")))

	h := NewCRC32C()
	_, _ = h.Write([]byte("12345"))
	_, _ = h.Write([]byte("6789"))
	assert.Equal(t, uint32(0xE3069283), h.Sum32())

	assert.True(t, VerifyCRC32C([]byte("123456789"), 0xE3069283))
	assert.False(t, VerifyCRC32C([]byte("123456780"), 0xE3069283))
}
