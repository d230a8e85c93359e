package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{"0.1.0", "blogcheck v0.1.0\n"},
		{"1.2.3", "blogcheck v1.2.3\n"},
		{"dev", "blogcheck vdev\n"},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			out, _, err := execute(NewVersionCommand(tt.version))
			require.NoError(t, err)
			assert.Equal(t, tt.want+"Django blog checklist validator\n", out)
		})
	}
}

func TestVersionCommand_Metadata(t *testing.T) {
	cmd := NewVersionCommand("test")
	assert.Equal(t, "version", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
}
