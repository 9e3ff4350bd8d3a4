package logger

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newBufferLogger(level Level) (Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return NewWithConfig(Config{Level: level, Writer: buf, NoColor: true}), buf
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(WarnLevel)

	l.Info("hidden")
	l.Warn("shown")
	l.Errorf("code %d", 7)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "code 7")
}

func TestWithFieldsAndPrefix(t *testing.T) {
	l, buf := newBufferLogger(DebugLevel)

	l.WithPrefix("comms").WithFields(map[string]interface{}{"agent": 3, "hops": 1}).Debug("relayed")

	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, "[comms]")
	assert.Contains(t, line, "relayed")
	assert.Contains(t, line, `"agent": 3`)
	assert.Contains(t, line, `"hops": 1`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"fatal", FatalLevel},
		{"bogus", InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestTableFprint(t *testing.T) {
	tbl := NewTable("ID", "NAME")
	tbl.AddRow("1", "relay-chain")
	tbl.AddRow("22", "coop-uav")

	var buf bytes.Buffer
	tbl.Fprint(&buf)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "ID  NAME"))
	assert.True(t, strings.HasPrefix(lines[1], "--  ----"))
	assert.Contains(t, lines[3], "coop-uav")
}

func TestSpinnerWithoutTerminal(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewSpinnerTo(buf, "Waiting for mirror")

	s.Start()
	s.Start()
	s.UpdateMessage("still waiting")
	s.Stop()
	s.Stop()

	assert.Equal(t, "Waiting for mirror...\n", buf.String())
}

func TestWithSpinnerReturnsError(t *testing.T) {
	SetOutput(&bytes.Buffer{})
	defer SetOutput(os.Stdout)

	want := errors.New("boom")
	assert.ErrorIs(t, WithSpinner("Dialling", func() error { return want }), want)
	assert.NoError(t, WithSpinner("Dialling", func() error { return nil }))
}
