package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"accepts select", []string{"validate", "SELECT * FROM singer"}, false},
		{"joins multiple args", []string{"validate", "SELECT", "name", "FROM", "singer"}, false},
		{"rejects mutation", []string{"validate", "DELETE FROM singer"}, true},
		{"rejects injection", []string{"validate", "SELECT * FROM t; DROP TABLE t;"}, true},
		{"requires an argument", []string{"validate"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCommand().Run(context.Background(), tt.args)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}

	for _, c := range []string{"serve", "ask", "reindex", "databases", "validate"} {
		names[c] = false
	}

	for _, command := range commandList() {
		if _, ok := names[command.Name]; ok {
			names[command.Name] = true
		}
	}

	for name, seen := range names {
		require.True(t, seen, "command %s not registered", name)
	}
}
