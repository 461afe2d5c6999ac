package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnescape(t *testing.T) {
	cases := map[string]string{
		"not escaped":     "not escaped",
		`newline\n`:       "newline\n",
		`escaped\\n`:      `escaped\n`,
		`\\0101`:          `\0101`,
		`\07`:             "\a",
		`\011`:            "\t",
		`\0101`:           "A",
		`\01012`:          "A2",
		`\x7`:             "\a",
		`\x4A`:            "J",
		`\x4AB`:           "JB",
		`\xz`:             `\xz`,
		`\q`:              `\q`,
		`trailing\`:       `trailing\`,
		`\e[1m`:           "\x1b[1m",
		`stop\chere`:      "stop",
		`\u@\h`:           `\u@\h`,
		`tab\there\\tnot`: "tab\there\\tnot",
	}

	for escaped, expected := range cases {
		t.Run(escaped, func(t *testing.T) {
			assert.Equal(t, expected, Unescape(escaped))
		})
	}
}

func TestUnescape_cut(t *testing.T) {
	out, cut := unescape(`a\cb`)
	assert.Equal(t, "a", out)
	assert.True(t, cut)

	_, cut = unescape(`a\nb`)
	assert.False(t, cut)
}
