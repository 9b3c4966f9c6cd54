package fsm_test

import (
	"errors"
	"testing"

	"github.com/dukex/signoff/pkg/fsm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lightState string

type lightOp string

type light struct {
	state   lightState
	flicked int
	broken  bool
}

func newLightTable() *fsm.Table[lightState, lightOp, *light] {
	return fsm.NewTable[lightState, lightOp, *light]("light").
		Add("on", []lightState{"off"}, fsm.Transition[lightState, *light]{
			To: "lit",
			Guard: func(l *light) string {
				if l.broken {
					return "bulb is broken"
				}

				return ""
			},
			Effect: func(l *light) { l.flicked++ },
		}).
		Add("off", []lightState{"lit"}, fsm.Transition[lightState, *light]{To: "off"})
}

func TestTable_Fire(t *testing.T) {
	t.Parallel()

	table := newLightTable()

	tests := []struct {
		name       string
		from       lightState
		op         lightOp
		broken     bool
		expectedTo lightState
		reason     string
		wantErr    bool
	}{
		{name: "valid transition", from: "off", op: "on", expectedTo: "lit"},
		{name: "guard rejects", from: "off", op: "on", broken: true, reason: "bulb is broken", wantErr: true},
		{name: "unknown pair", from: "lit", op: "on", wantErr: true},
		{name: "unknown state", from: "melted", op: "off", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			entity := &light{state: tt.from, broken: tt.broken}
			transition, err := table.Fire(tt.from, tt.op, entity)

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, fsm.IsInvalidTransition(err))

				var transitionErr *fsm.TransitionError
				require.True(t, errors.As(err, &transitionErr))
				assert.Equal(t, "light", transitionErr.Entity)
				assert.Equal(t, string(tt.from), transitionErr.From)
				assert.Equal(t, tt.reason, transitionErr.Reason)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectedTo, transition.To)
			assert.Equal(t, 0, entity.flicked, "Fire must not apply effects")
		})
	}
}

func TestTable_CanAndPermitted(t *testing.T) {
	t.Parallel()

	table := newLightTable()

	assert.True(t, table.Can("off", "on", &light{}))
	assert.False(t, table.Can("off", "on", &light{broken: true}))
	assert.False(t, table.Can("lit", "on", &light{}))
	assert.Equal(t, []lightOp{"on"}, table.Permitted("off"))
	assert.Empty(t, table.Permitted("melted"))
}

func TestTransitionError_Message(t *testing.T) {
	t.Parallel()

	err := &fsm.TransitionError{Entity: "template", From: "draft", Operation: "activate", Reason: "template has no steps"}
	assert.Equal(t, "cannot activate template in state draft: template has no steps", err.Error())
	assert.ErrorIs(t, err, fsm.ErrInvalidTransition)
}
