package snapshot

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/infinivision/mvbtree/btree"
	"github.com/infinivision/mvbtree/constant"
	"github.com/infinivision/mvbtree/errmsg"
	"github.com/infinivision/mvbtree/stack"
	"golang.org/x/sys/unix"
)

// Encode writes the subtree under root depth first, one bracket group per
// line.
func Encode(w io.Writer, root *btree.Node) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "[%s]\n", header)
	s := stack.New[*btree.Node]()
	s.Push(root)
	for !s.IsEmpty() {
		n, _ := s.Pop()
		items := n.Items()
		children := n.Children()
		fmt.Fprintf(bw, "[%x]\n[%x]\n", n.Rank(), len(items))
		for _, it := range items {
			fmt.Fprintf(bw, "[%d]\n[%d]\n", it.Key, len(it.Versions))
			for _, v := range it.Versions {
				xmax := open
				if v.Xmax != nil {
					xmax = strconv.FormatUint(*v.Xmax, 10)
				}
				fmt.Fprintf(bw, "[%d][%s][%d]\n%s\n", v.Xmin, xmax, utf8.RuneCountInString(v.Value), v.Value)
			}
		}
		fmt.Fprintf(bw, "[%x]\n", len(children))
		for i := len(children) - 1; i >= 0; i-- {
			s.Push(children[i])
		}
	}
	return bw.Flush()
}

// Decode reads a tree written by Encode and returns its root.
func Decode(r io.Reader) (*btree.Node, error) {
	d := &decoder{rd: bufio.NewReader(r), line: 1}
	tok, err := d.group()
	if err != nil {
		return nil, err
	}
	if tok != header {
		return nil, d.errorf("header %q", tok)
	}
	s := stack.New[*pending]()
	for {
		p, err := d.node()
		if err != nil {
			return nil, err
		}
		if p.want > 0 {
			s.Push(p)
			continue
		}
		n := btree.NewNode(p.rank, p.items, nil)
		for {
			top, ok := s.Peek()
			if !ok {
				if _, _, err := d.rd.ReadRune(); err != io.EOF {
					return nil, d.errorf("trailing data")
				}
				return n, nil
			}
			top.children = append(top.children, n)
			if len(top.children) < top.want {
				break
			}
			s.Pop()
			n = btree.NewNode(top.rank, top.items, top.children)
		}
	}
}

func (d *decoder) node() (*pending, error) {
	rank, err := d.hex()
	if err != nil {
		return nil, err
	}
	cnt, err := d.hex()
	if err != nil {
		return nil, err
	}
	p := &pending{rank: uint32(rank)}
	for i := uint64(0); i < cnt; i++ {
		it, err := d.item()
		if err != nil {
			return nil, err
		}
		it.Rank = p.rank
		p.items = append(p.items, it)
	}
	want, err := d.hex()
	if err != nil {
		return nil, err
	}
	if want > math.MaxInt32 {
		return nil, d.errorf("child count %x", want)
	}
	p.want = int(want)
	return p, nil
}

func (d *decoder) item() (btree.Item, error) {
	key, err := d.decimal(32)
	if err != nil {
		return btree.Item{}, err
	}
	cnt, err := d.decimal(32)
	if err != nil {
		return btree.Item{}, err
	}
	it := btree.Item{Key: uint32(key)}
	for i := uint64(0); i < cnt; i++ {
		v, err := d.version()
		if err != nil {
			return btree.Item{}, err
		}
		it.Versions = append(it.Versions, v)
	}
	return it, nil
}

func (d *decoder) version() (btree.Version, error) {
	var v btree.Version

	tok, err := d.token()
	if err != nil {
		return v, err
	}
	if v.Xmin, err = strconv.ParseUint(tok, 10, 64); err != nil {
		return v, d.errorf("xmin %q", tok)
	}
	if tok, err = d.token(); err != nil {
		return v, err
	}
	if tok != open {
		x, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			return v, d.errorf("xmax %q", tok)
		}
		v.Xmax = &x
	}
	if tok, err = d.token(); err != nil {
		return v, err
	}
	n, err := strconv.ParseUint(tok, 10, 64)
	if err != nil {
		return v, d.errorf("value length %q", tok)
	}
	if err := d.newline(); err != nil {
		return v, err
	}
	var sb strings.Builder
	for i := uint64(0); i < n; i++ {
		c, _, err := d.rd.ReadRune()
		if err != nil {
			return v, d.errorf("value cut short")
		}
		sb.WriteRune(c)
	}
	v.Value = sb.String()
	return v, d.newline()
}

func (d *decoder) hex() (uint64, error) {
	tok, err := d.group()
	if err != nil {
		return 0, err
	}
	x, err := strconv.ParseUint(tok, 16, 64)
	if err != nil {
		return 0, d.errorf("hex %q", tok)
	}
	return x, nil
}

func (d *decoder) decimal(bits int) (uint64, error) {
	tok, err := d.group()
	if err != nil {
		return 0, err
	}
	x, err := strconv.ParseUint(tok, 10, bits)
	if err != nil {
		return 0, d.errorf("number %q", tok)
	}
	return x, nil
}

// group reads a bracket group that fills a whole line.
func (d *decoder) group() (string, error) {
	tok, err := d.token()
	if err != nil {
		return "", err
	}
	return tok, d.newline()
}

func (d *decoder) token() (string, error) {
	c, _, err := d.rd.ReadRune()
	if err != nil || c != '[' {
		return "", d.errorf("expected '['")
	}
	var rs []rune
	for {
		c, _, err := d.rd.ReadRune()
		switch {
		case err != nil:
			return "", d.errorf("unterminated group")
		case c == ']':
			return string(rs), nil
		case c == '\n':
			return "", d.errorf("group spans lines")
		}
		rs = append(rs, c)
	}
}

func (d *decoder) newline() error {
	c, _, err := d.rd.ReadRune()
	if err != nil || c != '\n' {
		return d.errorf("expected end of line")
	}
	d.line++
	return nil
}

func (d *decoder) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: line %d: %s", errmsg.MalformedSnapshot, d.line, fmt.Sprintf(format, args...))
}

// WriteFile persists root as dir/TREE, replacing any previous tree
// atomically.
func WriteFile(dir string, root *btree.Node) error {
	tmp := filepath.Join(dir, constant.TreeTempName)
	fp, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0664)
	if err != nil {
		return err
	}
	if err := Encode(fp, root); err != nil {
		fp.Close()
		return err
	}
	if err := unix.Fsync(int(fp.Fd())); err != nil {
		fp.Close()
		return err
	}
	if err := fp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, filepath.Join(dir, constant.TreeName)); err != nil {
		return err
	}
	fd, err := unix.Open(dir, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	return unix.Fsync(fd)
}

// ReadFile loads dir/TREE. A missing file yields a nil root.
func ReadFile(dir string) (*btree.Node, error) {
	return Load(filepath.Join(dir, constant.TreeName))
}

func Load(path string) (*btree.Node, error) {
	fp, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return Decode(fp)
}
