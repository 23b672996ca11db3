package session

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/akam1o/arca-replay/pkg/errors"
	"github.com/akam1o/arca-replay/pkg/logger"
)

// DefaultSSHPort is used when neither the host map nor Port names one
const DefaultSSHPort = 22

// SSHTransport opens an interactive login shell on each target over SSH
type SSHTransport struct {
	User string
	Port int

	// Hosts maps a target name to its address ("host" or "host:port").
	// Targets missing from the map are dialed by name.
	Hosts map[string]string

	// KeyFile is a private key used for public key authentication
	KeyFile string

	// Password enables password authentication when set
	Password string

	// KnownHostsFile verifies host keys; required unless InsecureIgnoreHostKey
	KnownHostsFile string

	// InsecureIgnoreHostKey accepts any host key (lab networks only)
	InsecureIgnoreHostKey bool

	// Term is the pseudo-terminal type requested for the shell
	Term string

	Log *logger.Logger

	once      sync.Once
	config    *ssh.ClientConfig
	configErr error
}

// Address returns the dial address for target
func (t *SSHTransport) Address(target string) string {
	addr := target
	if a, ok := t.Hosts[target]; ok && a != "" {
		addr = a
	}
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	port := t.Port
	if port == 0 {
		port = DefaultSSHPort
	}
	return net.JoinHostPort(addr, strconv.Itoa(port))
}

func (t *SSHTransport) clientConfig() (*ssh.ClientConfig, error) {
	t.once.Do(func() {
		t.config, t.configErr = t.buildConfig()
	})
	return t.config, t.configErr
}

func (t *SSHTransport) buildConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if t.KeyFile != "" {
		data, err := os.ReadFile(t.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse key file: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if t.Password != "" {
		auth = append(auth, ssh.Password(t.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("no SSH authentication method configured")
	}

	var hostKey ssh.HostKeyCallback
	switch {
	case t.KnownHostsFile != "":
		cb, err := knownhosts.New(t.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts: %w", err)
		}
		hostKey = cb
	case t.InsecureIgnoreHostKey:
		hostKey = ssh.InsecureIgnoreHostKey()
	default:
		return nil, fmt.Errorf("no host key policy: set known_hosts or insecure_ignore_host_key")
	}

	return &ssh.ClientConfig{
		User:            t.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
	}, nil
}

// Open dials target and starts an interactive shell on a pseudo-terminal
func (t *SSHTransport) Open(ctx context.Context, target string) (Channel, error) {
	config, err := t.clientConfig()
	if err != nil {
		return nil, errors.TransportOpenError(target, err)
	}

	addr := t.Address(target)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, errors.TransportOpenError(target, fmt.Errorf("SSH handshake with %s failed: %w", addr, err))
	}
	_ = conn.SetDeadline(time.Time{})
	client := ssh.NewClient(sshConn, chans, reqs)

	c, err := startShell(client, target, t.term())
	if err != nil {
		client.Close()
		return nil, errors.TransportOpenError(target, err)
	}

	log := t.Log
	if log == nil {
		log = logger.Discard()
	}
	log.Debug("SSH shell started", "target", target, "address", addr, "user", t.User)
	return c, nil
}

func (t *SSHTransport) term() string {
	if t.Term == "" {
		return "vt100"
	}
	return t.Term
}

func startShell(client *ssh.Client, target, term string) (*sshChannel, error) {
	sess, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 38400,
		ssh.TTY_OP_OSPEED: 38400,
	}
	if err := sess.RequestPty(term, 80, 200, modes); err != nil {
		sess.Close()
		return nil, fmt.Errorf("failed to request pty: %w", err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("failed to open stdin: %w", err)
	}
	out := newOutputBuffer()
	sess.Stdout = out
	sess.Stderr = out

	if err := sess.Shell(); err != nil {
		sess.Close()
		return nil, fmt.Errorf("failed to start shell: %w", err)
	}

	c := &sshChannel{target: target, client: client, session: sess, stdin: stdin, out: out}
	go func() {
		err := sess.Wait()
		out.closeWithError(fmt.Errorf("shell on %s exited: %v", target, err))
	}()
	return c, nil
}

type sshChannel struct {
	target  string
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	out     *outputBuffer

	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *sshChannel) Send(ctx context.Context, line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeContext(ctx, c.stdin, []byte(line+"\n"))
}

func (c *sshChannel) Expect(ctx context.Context, re *regexp.Regexp) (string, error) {
	return c.out.waitFor(ctx, re)
}

func (c *sshChannel) Close() error {
	c.closeOnce.Do(func() {
		_ = c.stdin.Close()
		_ = c.session.Close()
		c.closeErr = c.client.Close()
	})
	return c.closeErr
}
