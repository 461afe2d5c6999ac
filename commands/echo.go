package commands

import (
	"io"
	"strconv"
	"strings"
)

// escapes maps the character following a backslash to its replacement.
var escapes = map[byte]string{
	'a':  "\a",
	'b':  "\b",
	'e':  "\x1b",
	'f':  "\f",
	'n':  "\n",
	'r':  "\r",
	't':  "\t",
	'v':  "\v",
	'\\': `\`,
}

// Unescape interprets backslash escapes the way echo -e does. Text after
// \c is dropped.
func Unescape(s string) string {
	out, _ := unescape(s)
	return out
}

// unescape also reports whether a \c ended the output early.
func unescape(s string) (string, bool) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i == len(s)-1 {
			b.WriteByte(s[i])
			continue
		}

		i++
		switch c := s[i]; c {
		case 'c':
			return b.String(), true
		case '0':
			n, width := leadingDigits(s[i+1:], 3, 8)
			b.WriteByte(byte(n))
			i += width
		case 'x':
			n, width := leadingDigits(s[i+1:], 2, 16)
			if width == 0 {
				b.WriteString(`\x`)
				continue
			}
			b.WriteByte(byte(n))
			i += width
		default:
			if repl, ok := escapes[c]; ok {
				b.WriteString(repl)
			} else {
				b.WriteByte('\\')
				b.WriteByte(c)
			}
		}
	}
	return b.String(), false
}

// leadingDigits parses at most max digits in base from the start of s.
func leadingDigits(s string, max, base int) (n, width int) {
	for width < max && width < len(s) {
		d, err := strconv.ParseUint(s[width:width+1], base, 8)
		if err != nil {
			break
		}
		n = n*base + int(d)
		width++
	}
	return n, width
}

// Echo writes its arguments separated by spaces.
func Echo(inv *Invocation) error {
	cmd := &SimpleCommand{
		Use:   "echo [-neE] [ARG] ...",
		Short: "Write arguments to standard output.",
	}

	opt := cmd.Flags()
	noNewline := opt.Bool('n', "do not output the trailing newline")
	interpret := opt.Bool('e', "interpret backslash escapes")
	literal := opt.Bool('E', "print backslashes as is (default)")

	return cmd.Run(inv, func() error {
		line := strings.Join(opt.Args(), " ")
		if *interpret && !*literal {
			var cut bool
			if line, cut = unescape(line); cut {
				*noNewline = true
			}
		}
		if !*noNewline {
			line += "\n"
		}
		_, err := io.WriteString(inv.Stdout(), line)
		return err
	})
}

func init() {
	addBuiltin("echo", Echo)
}
