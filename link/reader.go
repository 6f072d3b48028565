package link

import (
	"errors"
	"io"
	"strings"
)

// ReadMessage drains r one byte at a time until no more input is
// available and returns what was read with every CR turned into LF.
// End of input is either io.EOF or a read that returns no bytes. Any other
// error discards the partial message.
func ReadMessage(r io.Reader) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n == 1 {
			b := buf[0]
			if b == '\r' {
				b = '\n'
			}
			sb.WriteByte(b)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return sb.String(), nil
			}
			return "", err
		}
		if n == 0 {
			return sb.String(), nil
		}
	}
}
