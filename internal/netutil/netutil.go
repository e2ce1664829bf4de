// Package netutil contains small connection-teardown helpers shared by the
// supervision layer. They are deliberately silent: teardown runs on paths
// where the unit is already failing or being cancelled, and a close error
// there has nobody left to report to.
package netutil

import (
	"net"
	"runtime"
)

type readCloser interface {
	CloseRead() error
}

type writeCloser interface {
	CloseWrite() error
}

// SafeClose tears down conn without ever failing. When the connection
// supports half-close (TCP and Unix sockets do), both directions are shut
// down first, then the goroutine yields once so a peer blocked on the
// connection can observe EOF before the descriptor disappears, then the
// connection is closed. A nil conn is a no-op. All errors are swallowed.
func SafeClose(conn net.Conn) {
	if conn == nil {
		return
	}
	if rc, ok := conn.(readCloser); ok {
		_ = rc.CloseRead()
	}
	if wc, ok := conn.(writeCloser); ok {
		_ = wc.CloseWrite()
	}
	runtime.Gosched()
	_ = conn.Close()
}

// SafeCloseListener closes l, tolerating nil and swallowing errors.
func SafeCloseListener(l net.Listener) {
	if l == nil {
		return
	}
	_ = l.Close()
}
