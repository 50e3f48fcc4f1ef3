package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/infinivision/mvbtree/errmsg"
)

func (o Op) String() string {
	if o >= 0 && int(o) < len(names) {
		return names[o]
	}
	return "op(" + strconv.Itoa(int(o)) + ")"
}

// Mutates reports whether the command is written to the log.
func (o Op) Mutates() bool {
	switch o {
	case Select, Dump, Checkpoint:
		return false
	}
	return true
}

// Parse reads one command line. Tokens are separated by white space and
// a value is the rest of the line after the key, joined by single spaces.
func Parse(line string) (Command, error) {
	return ParseTokens(strings.Fields(line))
}

func ParseTokens(ts []string) (Command, error) {
	if len(ts) == 0 {
		return Command{}, fmt.Errorf("%w: empty command", errmsg.InvalidArgument)
	}
	var c Command
	op, ok := lookup(strings.ToLower(ts[0]))
	if !ok {
		return c, fmt.Errorf("%w: %q", errmsg.UnknownCommand, ts[0])
	}
	c.Op = op
	args := ts[1:]
	switch op {
	case Begin, Commit, Abort, Checkpoint:
		if len(args) != 0 {
			return c, fmt.Errorf("%w: %s takes no arguments", errmsg.InvalidArgument, op)
		}
		return c, nil
	case Delete, Select, Dump:
		if len(args) != 1 {
			return c, fmt.Errorf("%w: usage: %s <key>", errmsg.InvalidArgument, op)
		}
	case Insert, Update:
		if len(args) < 2 {
			return c, fmt.Errorf("%w: usage: %s <key> <value>", errmsg.InvalidArgument, op)
		}
		c.Value = strings.Join(args[1:], " ")
		if !utf8.ValidString(c.Value) {
			return c, fmt.Errorf("%w: value is not valid UTF-8", errmsg.InvalidArgument)
		}
	}
	k, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return c, fmt.Errorf("%w: key %q", errmsg.InvalidArgument, args[0])
	}
	c.Key = uint32(k)
	return c, nil
}

func lookup(s string) (Op, bool) {
	for i, n := range names {
		if n == s {
			return Op(i), true
		}
	}
	return 0, false
}

// Tokens renders c the way Parse reads it back.
func (c Command) Tokens() []string {
	switch c.Op {
	case Insert, Update:
		return []string{c.Op.String(), strconv.FormatUint(uint64(c.Key), 10), c.Value}
	case Delete, Select, Dump:
		return []string{c.Op.String(), strconv.FormatUint(uint64(c.Key), 10)}
	}
	return []string{c.Op.String()}
}

func (c Command) String() string {
	return strings.Join(c.Tokens(), " ")
}

// Execute runs c for the client at addr and returns the reply lines.
func Execute(s Store, addr string, c Command) []string {
	switch c.Op {
	case Begin:
		return txnReply(s.Begin(addr))
	case Commit:
		return txnReply(s.Commit(addr))
	case Abort:
		return txnReply(s.Abort(addr))
	case Insert:
		return reply(s.Insert(addr, c.Key, c.Value))
	case Update:
		return reply(s.Update(addr, c.Key, c.Value))
	case Delete:
		return reply(s.Delete(addr, c.Key))
	case Select:
		v, err := s.Select(addr, c.Key)
		if err != nil {
			return reply(err)
		}
		return []string{Value + " " + v}
	case Dump:
		vs, err := s.DumpVersions(c.Key)
		if err != nil {
			return reply(err)
		}
		rs := make([]string, 0, len(vs)+1)
		rs = append(rs, Versions+" "+strconv.Itoa(len(vs)))
		for _, v := range vs {
			xmax := "-"
			if v.Xmax != nil {
				xmax = strconv.FormatUint(*v.Xmax, 10)
			}
			rs = append(rs, fmt.Sprintf("%d %s %s", v.Xmin, xmax, v.Value))
		}
		return rs
	case Checkpoint:
		return reply(s.Checkpoint())
	}
	return reply(fmt.Errorf("%w: %s", errmsg.UnknownCommand, c.Op))
}

// Run parses and executes one line.
func Run(s Store, addr, line string) []string {
	c, err := Parse(line)
	if err != nil {
		return reply(err)
	}
	return Execute(s, addr, c)
}

// Replay executes one logged record, whose first token is the client
// address. Operation failures are part of the history and are ignored.
func Replay(s Store, rec []string) error {
	if len(rec) < 2 {
		return fmt.Errorf("%w: %q", errmsg.MalformedRecord, strings.Join(rec, " "))
	}
	c, err := ParseTokens(rec[1:])
	if err != nil {
		return fmt.Errorf("%w: %v", errmsg.MalformedRecord, err)
	}
	if !c.Op.Mutates() {
		return fmt.Errorf("%w: %s is never logged", errmsg.MalformedRecord, c.Op)
	}
	Execute(s, rec[0], c)
	return nil
}

func txnReply(id uint64, err error) []string {
	if err != nil {
		return reply(err)
	}
	return []string{OK + " " + strconv.FormatUint(id, 10)}
}

func reply(err error) []string {
	switch {
	case err == nil:
		return []string{OK}
	case errors.Is(err, errmsg.NotExist):
		return []string{NotFound}
	case errors.Is(err, errmsg.KeyExists):
		return []string{Exists}
	}
	return []string{Err + " " + err.Error()}
}
