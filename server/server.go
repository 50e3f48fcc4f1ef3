package server

import (
	"bufio"
	"errors"
	"net"
	"strings"

	"github.com/alitto/pond/v2"
	"github.com/infinivision/mvbtree/command"
	"github.com/infinivision/mvbtree/errmsg"
	"github.com/nnsgmsone/damrey/logger"
)

// New serves s on ln with at most workers connections handled at a time.
// Further connections wait for a free worker.
func New(ln net.Listener, s command.Store, workers int, log logger.Log) *server {
	return &server{
		ln:    ln,
		s:     s,
		log:   log,
		pool:  pond.NewPool(workers),
		conns: make(map[net.Conn]struct{}),
	}
}

func (srv *server) Addr() net.Addr {
	return srv.ln.Addr()
}

// Serve accepts connections until Close is called.
func (srv *server) Serve() error {
	for {
		conn, err := srv.ln.Accept()
		if err != nil {
			if srv.isClosed() {
				return nil
			}
			srv.log.Errorf("accept: %v\n", err)
			return err
		}
		if !srv.track(conn) {
			conn.Close()
			return nil
		}
		srv.pool.Submit(func() {
			defer srv.untrack(conn)
			srv.handle(conn)
		})
	}
}

// Close stops accepting, drops every connection and waits for their
// handlers to finish.
func (srv *server) Close() error {
	srv.Lock()
	if srv.closed {
		srv.Unlock()
		return errmsg.Closed
	}
	srv.closed = true
	err := srv.ln.Close()
	for conn := range srv.conns {
		conn.Close()
	}
	srv.Unlock()
	srv.pool.StopAndWait()
	return err
}

func (srv *server) handle(conn net.Conn) {
	addr := conn.RemoteAddr().String()
	defer srv.release(addr)

	rd := bufio.NewScanner(conn)
	wr := bufio.NewWriter(conn)
	for rd.Scan() {
		line := strings.TrimSpace(rd.Text())
		if len(line) == 0 {
			continue
		}
		for _, r := range command.Run(srv.s, addr, line) {
			wr.WriteString(r)
			wr.WriteByte('\n')
		}
		if err := wr.Flush(); err != nil {
			srv.log.Errorf("%s: %v\n", addr, err)
			return
		}
	}
	if err := rd.Err(); err != nil && !srv.isClosed() {
		srv.log.Errorf("%s: %v\n", addr, err)
	}
}

// release aborts the transaction a departed client left open.
func (srv *server) release(addr string) {
	_, err := srv.s.Abort(addr)
	switch {
	case err == nil:
	case errors.Is(err, errmsg.NoTransaction), errors.Is(err, errmsg.Closed):
	default:
		srv.log.Errorf("%s: abort on disconnect: %v\n", addr, err)
	}
}

func (srv *server) track(conn net.Conn) bool {
	srv.Lock()
	defer srv.Unlock()
	if srv.closed {
		return false
	}
	srv.conns[conn] = struct{}{}
	return true
}

func (srv *server) untrack(conn net.Conn) {
	srv.Lock()
	delete(srv.conns, conn)
	srv.Unlock()
	conn.Close()
}

func (srv *server) isClosed() bool {
	srv.Lock()
	defer srv.Unlock()
	return srv.closed
}
