package sshutil

import (
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/rileyhilliard/dutctl/internal/errors"
)

// forward is a local listener whose connections are relayed through the
// SSH connection to a remote address.
type forward struct {
	listener net.Listener
	port     int

	mu     sync.Mutex
	done   bool
	reason error
	closed chan struct{}
}

// Forward listens on 127.0.0.1:localPort and relays every accepted
// connection to remoteAddr (e.g. "localhost:22") from the DUT's side.
// The tunnel reports exited once the listener stops or the SSH connection
// drops.
func (c *Client) Forward(localPort int, remoteAddr string) (Tunnel, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(localPort)))
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Can't listen on local port %d", localPort),
			"Another process (or another tunnel) is using it. Pick a different port.")
	}

	f := &forward{
		listener: listener,
		port:     listener.Addr().(*net.TCPAddr).Port,
		closed:   make(chan struct{}),
	}

	go func() {
		err := c.Client.Wait()
		if err == nil {
			err = io.EOF
		}
		f.finish(fmt.Errorf("ssh connection to %s closed: %w", c.Address, err))
	}()

	go f.serve(func() (net.Conn, error) { return c.Client.Dial("tcp", remoteAddr) })

	return f, nil
}

func (f *forward) serve(dialRemote func() (net.Conn, error)) {
	for {
		local, err := f.listener.Accept()
		if err != nil {
			f.finish(err)
			return
		}
		go func() {
			remote, err := dialRemote()
			if err != nil {
				local.Close()
				return
			}
			relay(local, remote)
		}()
	}
}

// relay copies in both directions and closes both ends when either side
// finishes.
func relay(a, b net.Conn) {
	var once sync.Once
	closeBoth := func() {
		a.Close()
		b.Close()
	}
	go func() {
		_, _ = io.Copy(a, b)
		once.Do(closeBoth)
	}()
	_, _ = io.Copy(b, a)
	once.Do(closeBoth)
}

// finish records the first reason the tunnel stopped.
func (f *forward) finish(reason error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return
	}
	f.done = true
	f.reason = reason
	f.listener.Close()
	close(f.closed)
}

func (f *forward) LocalPort() int {
	return f.port
}

func (f *forward) Exited() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.done {
		return false, nil
	}
	if stderrors.Is(f.reason, net.ErrClosed) {
		return true, nil
	}
	return true, f.reason
}

func (f *forward) Close() error {
	f.finish(net.ErrClosed)
	return nil
}
