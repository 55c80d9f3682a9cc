package transport

import (
	"bytes"
	"errors"
	"testing"
)

func TestEmitter_Tokens(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf, Options{})

	e.Row(0)
	e.Sample(512)
	e.Sample(1023)
	e.HomeRow(2)
	e.HomeColumn(1)

	want := "R0\nC512\nC1023\nR2\nC1\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
	if e.Tokens() != 5 {
		t.Errorf("Tokens = %d, want 5", e.Tokens())
	}
}

func TestEmitter_PadAndSeparator(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf, Options{Separator: " ", PadWidth: 5})

	e.Row(7)
	e.Sample(123456) // wider than the pad: unchanged

	want := "R00007 C123456 "
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestEmitter_FaultAndBanner(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf, Options{Separator: "\r\n"})

	e.Banner("RasterGo online")
	e.Fault(errors.New("acquisition timeout"))

	want := "RasterGo online\r\nFacquisition_timeout\r\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestEmitter_FaultIsOneToken(t *testing.T) {
	cases := []struct {
		name string
		sep  string
		want string
	}{
		{"space", " ", "Fstep_timeout:_tick_(row_1,_column_2) "},
		{"comma", ",", "Fstep_timeout:_tick_(row_1__column_2),"},
		{"newline", "\n", "Fstep_timeout:_tick_(row_1,_column_2)\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			e := NewEmitter(&buf, Options{Separator: tc.sep})
			e.Fault(errors.New("step timeout: tick\t(row 1, column 2)"))
			if buf.String() != tc.want {
				t.Errorf("output = %q, want %q", buf.String(), tc.want)
			}
		})
	}
}

// failingWriter rejects every write.
type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("line down") }

func TestEmitter_WriteErrorsAreCounted(t *testing.T) {
	e := NewEmitter(failingWriter{}, Options{})
	e.Row(1)
	e.Sample(2)
	if e.Failures() != 2 {
		t.Errorf("Failures = %d, want 2", e.Failures())
	}
	if e.Tokens() != 2 {
		t.Errorf("Tokens = %d, want 2", e.Tokens())
	}
}
