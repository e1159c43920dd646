package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// promptValues asks for each key on out and reads one value per key from in.
// A terminal is read without echo; anything else is read line by line.
func promptValues(in io.Reader, out io.Writer, keys []string) (map[string]string, error) {
	var lines *bufio.Reader
	values := make(map[string]string, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		fmt.Fprintf(out, "Enter %s: ", key)

		var (
			val string
			err error
		)
		if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			var b []byte
			b, err = term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(out)
			val = string(b)
		} else {
			if lines == nil {
				lines = bufio.NewReader(in)
			}
			val, err = lines.ReadString('\n')
			if errors.Is(err, io.EOF) && val != "" {
				err = nil
			}
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		values[key] = strings.TrimRight(val, "\r\n")
	}
	return values, nil
}
