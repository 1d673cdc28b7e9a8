package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeText(t *testing.T) {
	cases := map[string]string{
		"":                       "",
		"ab\x00cd\x01\x02\n\txy": "abcd\n\txy",
		"  caf\uFFFDé \x1b ":     "café",
		"\x00\x00":               "",
	}
	for in, want := range cases {
		require.Equal(t, want, SanitizeText(in), "%q", in)
	}
}

func TestNormalizePageText(t *testing.T) {
	cases := []struct{ name, in, want string }{
		{"hyphen join", "  Mito-\nchondria   produce\r\n\n\n\n energy \x00", "Mitochondria produce\n\nenergy"},
		{"capital after hyphen kept", "Hodgkin-\nHuxley model", "Hodgkin-\nHuxley model"},
		{"carriage returns", "line one\rline two", "line one\nline two"},
		{"tabs collapse", "a\t\t b", "a b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, NormalizePageText(tc.in))
		})
	}
}
