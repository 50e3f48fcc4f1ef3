package server

import (
	"net"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/infinivision/mvbtree/command"
	"github.com/nnsgmsone/damrey/logger"
)

// Server speaks the line protocol: one command per line in, the reply
// lines out. A client is known by its remote address, and its open
// transaction is aborted when it disconnects.
type Server interface {
	Addr() net.Addr
	Serve() error
	Close() error
}

type server struct {
	sync.Mutex
	closed bool
	ln     net.Listener
	s      command.Store
	log    logger.Log
	pool   pond.Pool
	conns  map[net.Conn]struct{}
}
