package logmate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkg.jsn.cam/logmate/pkg/logmate"
)

const sampleLine = `123.45.67.89 - - [22/Mar/2025:15:42:10 +0000] "GET /api/v1/orders HTTP/1.1" 200 1234 "-" "Mozilla/5.0 (X11; Linux x86_64)"`

func TestParseLine(t *testing.T) {
	t.Parallel()

	rec, err := logmate.ParseLine(sampleLine)
	require.NoError(t, err)

	assert.Equal(t, logmate.Record{
		ClientAddress: "123.45.67.89",
		Method:        "GET",
		Path:          "/api/v1/orders",
		StatusCode:    "200",
		BytesSent:     1234,
		UserAgent:     "-",
	}, rec)
}

func TestParseLine_UserAgent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want string
	}{
		{
			name: "combined format reports the fourth segment",
			line: `1.1.1.1 - - [x] "GET / HTTP/1.1" 200 10 "-" "curl/7.68.0"`,
			want: "-",
		},
		{
			name: "single trailing field",
			line: `1.1.1.1 - - [x] "GET / HTTP/1.1" 200 10 "Wget/1.21.1"`,
			want: "Wget/1.21.1",
		},
		{
			name: "no trailing field",
			line: `1.1.1.1 - - [x] "GET / HTTP/1.1" 200 10`,
			want: logmate.UnknownUserAgent,
		},
		{
			name: "trimmed",
			line: `1.1.1.1 - - [x] "GET / HTTP/1.1" 200 10 "  agent  "`,
			want: "agent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec, err := logmate.ParseLine(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.UserAgent)
		})
	}
}

func TestParseLine_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want error
	}{
		{"empty", "", logmate.ErrMissingAddress},
		{"whitespace only", "   \t ", logmate.ErrMissingAddress},
		{"no quotes", "1.1.1.1 - - [x] GET / HTTP/1.1 200 10", logmate.ErrMalformedLine},
		{"one quote", `1.1.1.1 - - [x] "GET / HTTP/1.1 200 10`, logmate.ErrMalformedLine},
		{"request without path", `1.1.1.1 - - [x] "GET" 200 10 "-" "ua"`, logmate.ErrShortRequest},
		{"empty request", `1.1.1.1 - - [x] "" 200 10 "-" "ua"`, logmate.ErrShortRequest},
		{"missing byte count", `1.1.1.1 - - [x] "GET / HTTP/1.1" 200 "-" "ua"`, logmate.ErrShortStatus},
		{"non numeric bytes", `1.1.1.1 - - [x] "GET / HTTP/1.1" 200 abc "-" "ua"`, logmate.ErrInvalidBytes},
		{"dash bytes", `1.1.1.1 - - [x] "GET / HTTP/1.1" 304 - "-" "ua"`, logmate.ErrInvalidBytes},
		{"negative bytes", `1.1.1.1 - - [x] "GET / HTTP/1.1" 200 -5 "-" "ua"`, logmate.ErrInvalidBytes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var err error
			assert.NotPanics(t, func() {
				_, err = logmate.ParseLine(tt.line)
			})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseLine_Pure(t *testing.T) {
	t.Parallel()

	first, err := logmate.ParseLine(sampleLine)
	require.NoError(t, err)

	for range 10 {
		again, err := logmate.ParseLine(sampleLine)
		require.NoError(t, err)
		assert.Equal(t, first, again)
		assert.GreaterOrEqual(t, again.BytesSent, int64(0))
	}
}
