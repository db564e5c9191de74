package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("http:\n  port: 8081\n"), 0o600))

	tests := map[string]struct {
		args    []string
		wantErr string
	}{
		"migrate without dsn": {
			args:    []string{"migrate", "up", "--config", file},
			wantErr: "postgres dsn not configured",
		},
		"missing config": {
			args:    []string{"migrate", "down", "--config", filepath.Join(dir, "nope.yaml")},
			wantErr: "load config",
		},
		"bad log level": {
			args:    []string{"migrate", "up", "--config", file, "--log-level", "loud"},
			wantErr: `invalid log level "loud"`,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cmd := newRootCmd()
			cmd.SetArgs(tc.args)
			cmd.SetOut(new(bytes.Buffer))
			cmd.SetErr(new(bytes.Buffer))

			err := cmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("auth:\n  secret: s\n  ttl: 1h\n"), 0o600))

	o := &options{configPath: file}
	c, err := o.loadConfig()
	require.NoError(t, err)

	assert.Equal(t, int32(8080), c.HTTP.Port)
	assert.Equal(t, int32(9090), c.GRPC.Port)
	assert.Equal(t, "quizshare", c.Redis.Pubsub.Prefix)
	assert.Equal(t, "s", c.Auth.Secret)
	assert.Equal(t, "1h0m0s", c.Auth.TTL.String())
	assert.False(t, c.Quiz.AllowEditsDuringAttempts)
}
