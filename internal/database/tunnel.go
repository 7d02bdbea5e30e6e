package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/johan-st/dbgrid/internal/config"
)

const (
	defaultSSHPort    = 22
	sshConnectTimeout = 15 * time.Second
)

// ErrNoSSHAuth is returned when an ssh section has neither a password nor
// a key.
var ErrNoSSHAuth = errors.New("ssh: password or key_path is required")

// Tunnel forwards connections accepted on a loopback port to a remote
// address, dialed from an SSH server.
type Tunnel struct {
	client   *ssh.Client
	listener net.Listener
	remote   string

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// OpenTunnel connects to the SSH server described by cfg and starts
// forwarding a local port to remote, a host:port as seen from the server.
func OpenTunnel(ctx context.Context, cfg config.SSHConfig, remote string) (*Tunnel, error) {
	clientCfg, err := sshClientConfig(cfg)
	if err != nil {
		return nil, err
	}

	port := cfg.Port
	if port == 0 {
		port = defaultSSHPort
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))

	d := net.Dialer{Timeout: sshConnectTimeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ssh server: %w", err)
	}
	// The handshake has no context of its own.
	if deadline, ok := ctx.Deadline(); ok {
		nc.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(nc, addr, clientCfg)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}
	nc.SetDeadline(time.Time{})
	client := ssh.NewClient(c, chans, reqs)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to bind local port: %w", err)
	}

	t := &Tunnel{
		client:   client,
		listener: ln,
		remote:   remote,
		conns:    make(map[net.Conn]struct{}),
	}
	t.wg.Add(1)
	go t.serve()
	return t, nil
}

func sshClientConfig(cfg config.SSHConfig) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if cfg.KeyPath != "" {
		pem, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read ssh key: %w", err)
		}
		var signer ssh.Signer
		if cfg.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(cfg.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(pem)
		}
		if err != nil {
			return nil, fmt.Errorf("invalid ssh key %s: %w", cfg.KeyPath, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, ErrNoSSHAuth
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHosts != "" {
		cb, err := knownhosts.New(cfg.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts: %w", err)
		}
		hostKey = cb
	}

	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         sshConnectTimeout,
	}, nil
}

// Addr returns the loopback address that forwards to the remote.
func (t *Tunnel) Addr() *net.TCPAddr {
	return t.listener.Addr().(*net.TCPAddr)
}

func (t *Tunnel) serve() {
	defer t.wg.Done()
	for {
		local, err := t.listener.Accept()
		if err != nil {
			return
		}
		if !t.track(local) {
			local.Close()
			return
		}
		t.wg.Add(1)
		go t.forward(local)
	}
}

// forward pipes one local connection through a direct-tcpip channel until
// either side closes.
func (t *Tunnel) forward(local net.Conn) {
	defer t.wg.Done()
	defer t.untrack(local)

	remote, err := t.client.Dial("tcp", t.remote)
	if err != nil {
		return
	}
	defer remote.Close()

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(remote, local)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(local, remote)
		done <- struct{}{}
	}()
	<-done
}

func (t *Tunnel) track(c net.Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.conns[c] = struct{}{}
	return true
}

func (t *Tunnel) untrack(c net.Conn) {
	t.mu.Lock()
	delete(t.conns, c)
	t.mu.Unlock()
	c.Close()
}

// Close stops accepting, drops every forwarded connection and disconnects
// from the SSH server. It is safe to call more than once.
func (t *Tunnel) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	for c := range t.conns {
		c.Close()
	}
	t.mu.Unlock()

	err := t.listener.Close()
	if cerr := t.client.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
		err = errors.Join(err, cerr)
	}
	t.wg.Wait()
	return err
}

// startTunnel opens the tunnel for a server connection with an ssh section
// and points cfg at its local end. It returns nil when cfg has no tunnel.
func startTunnel(ctx context.Context, driver Driver, cfg *config.ConnectionConfig) (*Tunnel, error) {
	if cfg.SSH == nil || driver == SQLite {
		return nil, nil
	}
	port := cfg.Port
	if port == 0 {
		port = driver.defaultPort()
	}
	remote := net.JoinHostPort(cfg.Host, strconv.Itoa(port))

	t, err := OpenTunnel(ctx, *cfg.SSH, remote)
	if err != nil {
		return nil, fmt.Errorf("connection %q: %w", cfg.Name, err)
	}
	local := t.Addr()
	cfg.Host, cfg.Port = local.IP.String(), local.Port
	return t, nil
}
