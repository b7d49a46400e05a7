package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeMessage(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "  Hello, are you open?  ", "Hello, are you open?"},
		{"script block", "hi <script>alert(1)</script> there", "hi  there"},
		{"script upper case multiline", "a<SCRIPT type=\"text/javascript\">\nsteal()\n</Script>b", "ab"},
		{"non greedy", "<script>x</script>keep<script>y</script>", "keep"},
		{"javascript scheme", `<a href="JavaScript:alert(1)">x</a>`, `<a href="alert(1)">x</a>`},
		{"event handler", `<img src="a.png" onerror="alert(1)">`, `<img src="a.png" >`},
		{"single quoted handler", `<b onClick='go()'>x</b>`, `<b >x</b>`},
		{"nested reassembly", "<scr<script></script>ipt>alert(1)</script>ok", "ok"},
		{"scheme reassembly", "javajavascript:script:void(0)", "void(0)"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeMessage(tc.in))
		})
	}
}

func TestSanitizeMessageIsIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"<script>a</script>",
		"<scr<script>x</script>ipt>b</script>",
		"jajavascript:vascript:",
		` onload="x" text `,
		"on<script></script>click=\"y\"",
		"Hello\n<script>\n</script>\nworld",
		strings.Repeat("<script>", 5) + "x" + strings.Repeat("</script>", 5),
	}

	for _, in := range inputs {
		once := SanitizeMessage(in)
		assert.Equal(t, once, SanitizeMessage(once), "input %q", in)
		assert.NotRegexp(t, `(?is)<script\b[^>]*>.*?</script\s*>`, once)
	}
}

func TestSanitizeAndValidate(t *testing.T) {
	content, err := SanitizeAndValidate("  ok  ")
	require.NoError(t, err)
	assert.Equal(t, "ok", content)

	_, err = SanitizeAndValidate("<script>only script</script>")
	assert.True(t, errors.Is(err, ErrInvalidContent))
	assert.True(t, errors.Is(err, ErrEmptyContent))

	_, err = SanitizeAndValidate(strings.Repeat("a", MaxMessageLength))
	assert.NoError(t, err)

	_, err = SanitizeAndValidate(strings.Repeat("ä", MaxMessageLength+1))
	assert.True(t, errors.Is(err, ErrContentTooLong))
}
