package proc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simon/flywatch/internal/testutil"
	"github.com/simon/flywatch/internal/tmux"
)

func TestPattern(t *testing.T) {
	assert.Equal(t, "mail-monitor.*BlueLake", Pattern("mail-monitor", "BlueLake"))
	assert.Equal(t, `mail-monitor.*Blue\.Lake\+1`, Pattern("mail-monitor", "Blue.Lake+1"))
}

func TestAlive(t *testing.T) {
	tests := []struct {
		name    string
		result  error
		alive   bool
		wantErr bool
	}{
		{name: "match", result: nil, alive: true},
		{name: "no match", result: testutil.Exit(1), alive: false},
		{name: "syntax error", result: testutil.Exit(2), wantErr: true},
		{name: "pgrep missing", result: errors.New("exec: \"pgrep\": not found"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := testutil.NewFakeExecutor()
			ex.Handler = func(c tmux.Command) (string, error) {
				return "", tt.result
			}
			m := &Matcher{Exec: ex, Prefix: "mail-monitor"}

			alive, err := m.Alive(context.Background(), "BlueLake")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.alive, alive)

			calls := ex.CallsTo("pgrep")
			require.Len(t, calls, 1)
			assert.Equal(t, []string{"-f", "mail-monitor.*BlueLake"}, calls[0].Args)
		})
	}
}
