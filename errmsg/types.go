package errmsg

import "errors"

var (
	NotExist            = errors.New("not exist")
	KeyExists           = errors.New("key exists")
	Closed              = errors.New("closed")
	DirLocked           = errors.New("data directory is locked")
	InvalidNodeSize     = errors.New("invalid node size")
	InvalidArgument     = errors.New("invalid argument")
	UnknownCommand      = errors.New("unknown command")
	NoTransaction       = errors.New("no active transaction")
	TransactionActive   = errors.New("transaction already active")
	TransactionConflict = errors.New("transaction conflict")
	RepairDiverged      = errors.New("tree repair did not converge")
	InvariantViolated   = errors.New("tree invariant violated")
	MalformedSnapshot   = errors.New("malformed snapshot")
	MalformedRecord     = errors.New("malformed log record")
)
