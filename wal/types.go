package wal

import (
	"os"
	"sync"
)

// Writer appends one text record per line and syncs it before returning.
type Writer interface {
	Close() error
	Append([]string) error
	Truncate([][]string) error
}

type walWriter struct {
	sync.Mutex
	dir string
	fp  *os.File
}
