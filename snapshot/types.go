package snapshot

import (
	"bufio"

	"github.com/infinivision/mvbtree/btree"
)

// header opens every tree file
const header = "0"

const open = "-" // xmax of a version that is still open

type decoder struct {
	rd   *bufio.Reader
	line int
}

// pending is a decoded node still waiting for its children.
type pending struct {
	rank     uint32
	want     int
	items    []btree.Item
	children []*btree.Node
}
