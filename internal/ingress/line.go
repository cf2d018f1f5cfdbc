package ingress

import (
	"bufio"
	"encoding/base64"
	"errors"
	"io"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

const maxLineBuffer = 1024 * 1024

// decodeLine applies the UTF-8 check and the optional base64 decode step
// shared by every line-oriented source. bufio.Scanner does not validate
// UTF-8, so a line that is not valid UTF-8 is rejected here.
func decodeLine(line []byte, base64Enc bool) ([]byte, error) {
	if !utf8.Valid(line) {
		return nil, errors.New("ingress: line is not valid UTF-8")
	}
	if !base64Enc {
		out := make([]byte, len(line))
		copy(out, line)
		return out, nil
	}
	out := make([]byte, base64.StdEncoding.DecodedLen(len(line)))
	n, err := base64.StdEncoding.Decode(out, line)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

// scanLines runs a bufio.Scanner over r, decoding each line and sending it
// on ch. Malformed lines (invalid UTF-8 or failed base64 decode) are logged
// and skipped without ending the scan. Returns when r is exhausted,
// shutdown fires, or the scanner errors.
func scanLines(r io.Reader, base64Enc bool, ch chan<- Result, shutdown <-chan struct{}, log *logrus.Logger) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBuffer)

	for scanner.Scan() {
		payload, err := decodeLine(scanner.Bytes(), base64Enc)
		if err != nil {
			log.WithError(err).Warn("ingress: malformed line, skipping")
			continue
		}
		select {
		case ch <- Result{Payload: payload}:
		case <-shutdown:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		select {
		case ch <- Result{Err: err}:
		case <-shutdown:
		}
	}
}
