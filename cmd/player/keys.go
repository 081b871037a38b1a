package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"mural-service/internal/rotation"
)

// keys maps single-letter stdin commands to player actions.
type keys struct {
	advance  func()
	reload   func()
	snapshot func() rotation.Snapshot
	quit     func()
	out      io.Writer
}

// run reads commands until r is exhausted or q is entered.
func (k keys) run(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		switch strings.ToLower(strings.TrimSpace(sc.Text())) {
		case "n":
			k.advance()
		case "r":
			k.reload()
		case "s":
			fmt.Fprintln(k.out, describe(k.snapshot()))
		case "q":
			k.quit()
			return
		case "":
		default:
			fmt.Fprintln(k.out, "keys: n = next, r = reload, s = status, q = quit")
		}
	}
}

func describe(s rotation.Snapshot) string {
	if s.Item == nil {
		return fmt.Sprintf("state=%s items=%d", s.State, s.Len)
	}
	return fmt.Sprintf("state=%s item=%d/%d src=%s type=%s revision=%s",
		s.State, s.Index+1, s.Len, s.Item.Src, s.Item.Type, s.Revision)
}
