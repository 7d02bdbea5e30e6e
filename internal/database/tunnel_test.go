package database

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/johan-st/dbgrid/internal/config"
)

// sshServer is an in-process SSH server that only serves direct-tcpip
// channels. It accepts user "tunnel" with password "secret", or the
// authorized key.
type sshServer struct {
	addr    string
	hostKey ssh.Signer

	mu      sync.Mutex
	targets []string
}

func newSigner(t *testing.T) (ssh.Signer, ed25519.PrivateKey) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("NewSignerFromKey() error = %v", err)
	}
	return signer, priv
}

func startSSHServer(t *testing.T, authorized ssh.PublicKey) *sshServer {
	t.Helper()
	hostKey, _ := newSigner(t)
	srv := &sshServer{hostKey: hostKey}

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == "tunnel" && string(pass) == "secret" {
				return nil, nil
			}
			return nil, errors.New("access denied")
		},
		PublicKeyCallback: func(c ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if authorized != nil && bytes.Equal(key.Marshal(), authorized.Marshal()) {
				return nil, nil
			}
			return nil, errors.New("unknown key")
		},
	}
	cfg.AddHostKey(hostKey)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	srv.addr = ln.Addr().String()

	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.handle(nc, cfg)
		}
	}()
	return srv
}

func (s *sshServer) handle(nc net.Conn, cfg *ssh.ServerConfig) {
	conn, chans, reqs, err := ssh.NewServerConn(nc, cfg)
	if err != nil {
		nc.Close()
		return
	}
	defer conn.Close()
	go ssh.DiscardRequests(reqs)

	for nch := range chans {
		if nch.ChannelType() != "direct-tcpip" {
			nch.Reject(ssh.UnknownChannelType, "only direct-tcpip")
			continue
		}
		var req struct {
			Host     string
			Port     uint32
			OrigHost string
			OrigPort uint32
		}
		if err := ssh.Unmarshal(nch.ExtraData(), &req); err != nil {
			nch.Reject(ssh.ConnectionFailed, err.Error())
			continue
		}
		target := net.JoinHostPort(req.Host, strconv.Itoa(int(req.Port)))
		s.mu.Lock()
		s.targets = append(s.targets, target)
		s.mu.Unlock()

		upstream, err := net.Dial("tcp", target)
		if err != nil {
			nch.Reject(ssh.ConnectionFailed, err.Error())
			continue
		}
		ch, creqs, err := nch.Accept()
		if err != nil {
			upstream.Close()
			continue
		}
		go ssh.DiscardRequests(creqs)
		go func() {
			io.Copy(upstream, ch)
			upstream.Close()
		}()
		go func() {
			io.Copy(ch, upstream)
			ch.Close()
		}()
	}
}

func (s *sshServer) dialed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.targets...)
}

func (s *sshServer) config(t *testing.T) config.SSHConfig {
	t.Helper()
	host, port, err := net.SplitHostPort(s.addr)
	if err != nil {
		t.Fatalf("SplitHostPort(%q) error = %v", s.addr, err)
	}
	p, _ := strconv.Atoi(port)
	return config.SSHConfig{Host: host, Port: p, User: "tunnel", Password: "secret"}
}

func startEcho(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				io.Copy(c, c)
			}()
		}
	}()
	return ln.Addr().String()
}

func roundTrip(t *testing.T, addr, msg string) string {
	t.Helper()
	c, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("Dial(%q) error = %v", addr, err)
	}
	defer c.Close()
	c.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := c.Write([]byte(msg)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	buf := make([]byte, len(msg))
	if _, err := io.ReadFull(c, buf); err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}
	return string(buf)
}

func writeKey(t *testing.T, priv ed25519.PrivateKey, passphrase string) string {
	t.Helper()
	var block *pem.Block
	var err error
	if passphrase != "" {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	} else {
		block, err = ssh.MarshalPrivateKey(priv, "")
	}
	if err != nil {
		t.Fatalf("MarshalPrivateKey() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestTunnelForwards(t *testing.T) {
	srv := startSSHServer(t, nil)
	echo := startEcho(t)

	tun, err := OpenTunnel(context.Background(), srv.config(t), echo)
	if err != nil {
		t.Fatalf("OpenTunnel() error = %v", err)
	}
	if ip := tun.Addr().IP; !ip.IsLoopback() {
		t.Errorf("Addr() = %v, want a loopback address", tun.Addr())
	}

	for _, msg := range []string{"ping", "SELECT 1;"} {
		if got := roundTrip(t, tun.Addr().String(), msg); got != msg {
			t.Errorf("roundTrip(%q) = %q, want %q", msg, got, msg)
		}
	}
	for _, target := range srv.dialed() {
		if target != echo {
			t.Errorf("server dialed %q, want %q", target, echo)
		}
	}
	if n := len(srv.dialed()); n != 2 {
		t.Errorf("server dialed %d times, want 2", n)
	}

	if err := tun.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := tun.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestTunnelCloseDropsOpenConnections(t *testing.T) {
	srv := startSSHServer(t, nil)
	echo := startEcho(t)

	tun, err := OpenTunnel(context.Background(), srv.config(t), echo)
	if err != nil {
		t.Fatalf("OpenTunnel() error = %v", err)
	}
	c, err := net.Dial("tcp", tun.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.Close()
	if got := roundTrip(t, tun.Addr().String(), "x"); got != "x" {
		t.Fatalf("roundTrip(%q) = %q", "x", got)
	}

	if err := tun.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	c.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := c.Read(make([]byte, 1)); err == nil {
		t.Error("Read() on a forwarded connection succeeded after Close")
	}
}

func TestTunnelKeyAuth(t *testing.T) {
	tests := []struct {
		name       string
		passphrase string
	}{
		{"plain key", ""},
		{"encrypted key", "hunter2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer, priv := newSigner(t)
			srv := startSSHServer(t, signer.PublicKey())
			echo := startEcho(t)

			cfg := srv.config(t)
			cfg.Password = ""
			cfg.KeyPath = writeKey(t, priv, tt.passphrase)
			cfg.Passphrase = tt.passphrase

			tun, err := OpenTunnel(context.Background(), cfg, echo)
			if err != nil {
				t.Fatalf("OpenTunnel() error = %v", err)
			}
			defer tun.Close()
			if got := roundTrip(t, tun.Addr().String(), "key"); got != "key" {
				t.Errorf("roundTrip(%q) = %q, want %q", "key", got, "key")
			}
		})
	}
}

func TestTunnelErrors(t *testing.T) {
	srv := startSSHServer(t, nil)
	_, otherKey := newSigner(t)

	tests := []struct {
		name    string
		modify  func(*config.SSHConfig)
		wantErr string
	}{
		{"wrong password", func(c *config.SSHConfig) { c.Password = "nope" }, "handshake"},
		{"unknown key", func(c *config.SSHConfig) {
			c.Password = ""
			c.KeyPath = writeKey(t, otherKey, "")
		}, "handshake"},
		{"missing key file", func(c *config.SSHConfig) { c.KeyPath = "/nonexistent/id_rsa" }, "failed to read ssh key"},
		{"wrong passphrase", func(c *config.SSHConfig) {
			c.KeyPath = writeKey(t, otherKey, "right")
			c.Passphrase = "wrong"
		}, "invalid ssh key"},
		{"no credentials", func(c *config.SSHConfig) { c.Password = "" }, ErrNoSSHAuth.Error()},
		{"missing known hosts", func(c *config.SSHConfig) { c.KnownHosts = "/nonexistent/known_hosts" }, "known hosts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := srv.config(t)
			tt.modify(&cfg)
			tun, err := OpenTunnel(context.Background(), cfg, "127.0.0.1:1")
			if err == nil {
				tun.Close()
				t.Fatalf("OpenTunnel() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("OpenTunnel() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestTunnelKnownHosts(t *testing.T) {
	srv := startSSHServer(t, nil)
	echo := startEcho(t)
	stranger, _ := newSigner(t)

	tests := []struct {
		name    string
		key     ssh.PublicKey
		wantErr bool
	}{
		{"matching key", srv.hostKey.PublicKey(), false},
		{"changed key", stranger.PublicKey(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "known_hosts")
			line := knownhosts.Line([]string{knownhosts.Normalize(srv.addr)}, tt.key)
			if err := os.WriteFile(path, []byte(line+"\n"), 0o600); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}

			cfg := srv.config(t)
			cfg.KnownHosts = path
			tun, err := OpenTunnel(context.Background(), cfg, echo)
			if (err != nil) != tt.wantErr {
				t.Fatalf("OpenTunnel() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tun != nil {
				tun.Close()
			}
		})
	}
}

func TestStartTunnelPointsConfigAtLocalEnd(t *testing.T) {
	srv := startSSHServer(t, nil)
	sshCfg := srv.config(t)

	tests := []struct {
		name       string
		cfg        config.ConnectionConfig
		wantRemote string
	}{
		{
			name:       "postgres default port",
			cfg:        config.ConnectionConfig{Name: "pg", Driver: "postgres", Host: "db.internal", User: "u", Database: "app", SSH: &sshCfg},
			wantRemote: "db.internal:5432",
		},
		{
			name:       "mysql explicit port",
			cfg:        config.ConnectionConfig{Name: "my", Driver: "mysql", Host: "10.0.0.7", Port: 3307, User: "u", Database: "shop", SSH: &sshCfg},
			wantRemote: "10.0.0.7:3307",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver, _ := ParseDriver(tt.cfg.Driver)
			cfg := tt.cfg
			tun, err := startTunnel(context.Background(), driver, &cfg)
			if err != nil {
				t.Fatalf("startTunnel() error = %v", err)
			}
			defer tun.Close()

			if tun.remote != tt.wantRemote {
				t.Errorf("remote = %q, want %q", tun.remote, tt.wantRemote)
			}
			local := tun.Addr()
			if cfg.Host != local.IP.String() || cfg.Port != local.Port {
				t.Errorf("config points at %s:%d, want %v", cfg.Host, cfg.Port, local)
			}
			dsn, err := DSN(cfg)
			if err != nil {
				t.Fatalf("DSN() error = %v", err)
			}
			if !strings.Contains(dsn, local.String()) {
				t.Errorf("DSN() = %q, want it to contain %q", dsn, local.String())
			}
		})
	}
}

func TestStartTunnelWithoutSSH(t *testing.T) {
	cfg := config.ConnectionConfig{Name: "pg", Driver: "postgres", Host: "db", Port: 5432}
	tun, err := startTunnel(context.Background(), Postgres, &cfg)
	if err != nil || tun != nil {
		t.Fatalf("startTunnel() = (%v, %v), want (nil, nil)", tun, err)
	}
	if cfg.Host != "db" || cfg.Port != 5432 {
		t.Errorf("config changed to %s:%d", cfg.Host, cfg.Port)
	}
}

func TestOpenReportsTunnelFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = Open(ctx, config.ConnectionConfig{
		Name: "prod", Driver: "postgres", Host: "db", Port: 5432,
		SSH: &config.SSHConfig{Host: "127.0.0.1", Port: addr.Port, User: "u", Password: "p"},
	})
	if err == nil {
		t.Fatal("Open() through an unreachable ssh server succeeded")
	}
	if !strings.Contains(err.Error(), `connection "prod"`) || !strings.Contains(err.Error(), "ssh server") {
		t.Errorf("Open() error = %q", err)
	}
}
