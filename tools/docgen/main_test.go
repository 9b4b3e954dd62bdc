package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name string
		fmt  string
		want string
	}{
		{name: "markdown", fmt: "markdown", want: "listing-aggregator_search.md"},
		{name: "man", fmt: "man", want: "listing-aggregator-search.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, generate(dir, tt.fmt))

			_, err := os.Stat(filepath.Join(dir, tt.want))
			assert.NoError(t, err)
		})
	}
}

func TestGenerate_UnknownFormat(t *testing.T) {
	err := generate(t.TempDir(), "html")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}
