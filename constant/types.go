package constant

import (
	"math"
	"time"
)

const (
	CheckPointCycle     = 5 * time.Second
	CheckPointThreshold = 1024 // logged mutations between checkpoints
)

const (
	NodeSize    = 4
	MinNodeSize = 4
)

const (
	MinKey = uint32(0)
	MaxKey = uint32(math.MaxUint32)
)

// repair passes allowed before the pipeline is declared divergent
const MaxRepairPasses = 64

const (
	LogName      = "LOG"
	LockName     = "LOCK"
	TreeName     = "TREE"
	TreeTempName = "TREE.tmp"
	LogTempName  = "LOG.tmp"
)

const (
	Workers = 64 // connection workers
)

const (
	CommitToken = "commit"
)
