package status

import (
	"encoding/base64"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemainingMinutes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		remaining time.Duration
		want      int64
	}{
		{name: "one nanosecond past target", remaining: -1, want: 0},
		{name: "zero", remaining: 0, want: 1},
		{name: "last sub-minute", remaining: 30 * time.Second, want: 1},
		{name: "just under a minute", remaining: 59 * time.Second, want: 1},
		{name: "exactly a minute", remaining: time.Minute, want: 2},
		{name: "an hour", remaining: time.Hour, want: 61},
		{name: "59 minutes", remaining: 59 * time.Minute, want: 60},
		{name: "one minute past", remaining: -time.Minute, want: 0},
		{name: "just over a minute past", remaining: -time.Minute - time.Nanosecond, want: -1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := Snapshot{State: Running, Remaining: tt.remaining}
			assert.Equal(t, tt.want, s.RemainingMinutes())
		})
	}
}

func TestDescribeOnlyUnknownIsEmpty(t *testing.T) {
	t.Parallel()
	for _, st := range []State{Unknown, Running, Breaking, Complete, Paused} {
		for _, rem := range []time.Duration{-3 * time.Minute, -1, 0, 42 * time.Second, 25 * time.Minute} {
			d := Snapshot{State: st, Remaining: rem}.Describe()
			if st == Unknown {
				assert.Empty(t, d, "state=%s remaining=%s", st, rem)
			} else {
				assert.NotEmpty(t, d, "state=%s remaining=%s", st, rem)
			}
		}
	}
}

func TestDescribeRunning(t *testing.T) {
	t.Parallel()
	s := Snapshot{State: Running, Remaining: time.Hour}
	assert.Equal(t, "61m to break", s.Describe())
	assert.Equal(t, "RUNNING: 61m to break", s.Alert())
}

func TestFormat(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "24:05m", Snapshot{Remaining: 24*time.Minute + 5*time.Second}.Format())
	assert.Equal(t, "2:30m ago", Snapshot{Remaining: -(2*time.Minute + 30*time.Second)}.Format())
}

func TestParseState(t *testing.T) {
	t.Parallel()
	st, err := ParseState("Breaking")
	require.NoError(t, err)
	assert.Equal(t, Breaking, st)

	_, err = ParseState("snoozing")
	assert.Error(t, err)
}

func TestDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	in := Snapshot{State: Breaking, Remaining: -90 * time.Second, Count: 3, Total: 4}
	raw, err := Encode(in)
	require.NoError(t, err)

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestDecodeWireFixture(t *testing.T) {
	t.Parallel()
	payload := `{"state":1,"remaining":1500000000000,"count":2,"n_pomodoros":4}`
	raw := []byte(`"` + base64.StdEncoding.EncodeToString([]byte(payload)) + `"` + "\n")

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, Snapshot{State: Running, Remaining: 25 * time.Minute, Count: 2, Total: 4}, got)
}

func TestDecodeUnknownStateCode(t *testing.T) {
	t.Parallel()
	payload := `{"state":9,"remaining":0,"count":0,"n_pomodoros":0}`
	raw := []byte(`"` + base64.StdEncoding.EncodeToString([]byte(payload)) + `"`)

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, Unknown, got.State)
}

func TestDecodeStages(t *testing.T) {
	t.Parallel()
	enc := func(s string) []byte {
		return []byte(`"` + base64.StdEncoding.EncodeToString([]byte(s)) + `"`)
	}
	tests := []struct {
		name  string
		raw   []byte
		stage string
	}{
		{name: "not json", raw: []byte("hello"), stage: StageEnvelope},
		{name: "not a string", raw: []byte(`{"state":1}`), stage: StageEnvelope},
		{name: "trailing data", raw: []byte(`"a" "b"`), stage: StageEnvelope},
		{name: "bad base64", raw: []byte(`"%%%"`), stage: StageBase64},
		{name: "bad utf8", raw: []byte(`"` + base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe}) + `"`), stage: StageUTF8},
		{name: "payload not json", raw: enc("nope"), stage: StagePayload},
		{name: "missing field", raw: enc(`{"state":1,"remaining":0,"count":0}`), stage: StagePayload},
		{name: "state overflow", raw: enc(`{"state":300,"remaining":0,"count":0,"n_pomodoros":0}`), stage: StagePayload},
		{name: "negative count", raw: enc(`{"state":1,"remaining":0,"count":-1,"n_pomodoros":0}`), stage: StagePayload},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Decode(tt.raw)
			require.Error(t, err)
			var de *DecodeError
			require.True(t, errors.As(err, &de), "want *DecodeError, got %T", err)
			assert.Equal(t, tt.stage, de.Stage)
			assert.Equal(t, Snapshot{}, got)
		})
	}
}

func TestIsChangeProperties(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(1))
	states := []State{Unknown, Running, Breaking, Complete, Paused}
	randRemaining := func() time.Duration {
		return time.Duration(rng.Int63n(int64(2*time.Hour))) - time.Hour
	}

	for i := 0; i < 2000; i++ {
		a := Snapshot{State: states[rng.Intn(len(states))], Remaining: randRemaining()}
		b := Snapshot{State: states[rng.Intn(len(states))], Remaining: randRemaining()}

		if a.State != b.State {
			require.True(t, IsChange(a, b), "differing states must change: %v -> %v", a, b)
			continue
		}
		if a.State == Complete {
			require.False(t, IsChange(a, b), "complete never re-triggers: %v -> %v", a, b)
			continue
		}
		if a.RemainingMinutes() == b.RemainingMinutes() {
			require.False(t, IsChange(a, b), "same bucket must not change: %v -> %v", a, b)
		} else {
			require.True(t, IsChange(a, b), "bucket change must change: %v -> %v", a, b)
		}

		// Same state, same bucket: always false, including Complete.
		c := Snapshot{State: a.State, Remaining: a.Remaining + time.Duration(rng.Int63n(int64(time.Second)))}
		if c.RemainingMinutes() == a.RemainingMinutes() {
			require.False(t, IsChange(a, c))
		}
	}
}

func TestIsChangeStream(t *testing.T) {
	t.Parallel()
	stream := []Snapshot{
		{State: Unknown},
		{State: Running, Remaining: 3_600_000_000_000},
		{State: Running, Remaining: 3_599_000_000_000},
		{State: Running, Remaining: 3_540_000_000_000},
	}
	// 61m, 60m, 60m under floor(r/min)+1.
	want := []bool{true, true, false}
	for i := 1; i < len(stream); i++ {
		assert.Equal(t, want[i-1], IsChange(stream[i-1], stream[i]), "step %d", i)
	}
}
