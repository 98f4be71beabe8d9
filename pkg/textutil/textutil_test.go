package textutil

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", ShortID("abc"))
	assert.Equal(t, "12345678", ShortID("12345678"))
	assert.Equal(t, "9f1c2b3a", ShortID("9f1c2b3a-4d5e-6f70-8192-a3b4c5d6e7f8"))
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "status", 10, "status"},
		{"exact", "status", 6, "status"},
		{"ascii cut", "How many queues", 8, "How many..."},
		{"cut inside emoji", "ok ⏱️ done", 4, "ok ..."},
		{"cut inside accented", "café au lait", 4, "caf..."},
		{"zero", "abc", 0, "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
