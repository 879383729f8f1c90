package device

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// clientConfig builds the SSH client configuration for p. Without a
// known_hosts file the host key is not verified.
func clientConfig(p Params) (*ssh.ClientConfig, error) {
	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if p.KnownHostsFile != "" {
		cb, err := knownhosts.New(p.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("loading known hosts %s: %w", p.KnownHostsFile, err)
		}
		hostKeyCallback = cb
	}

	password := p.Password
	return &ssh.ClientConfig{
		User: p.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			// Many network OSes only offer keyboard-interactive
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKeyCallback,
		Timeout:         p.Timeout,
	}, nil
}

// dialConn opens the TCP connection for p and arms a deadline covering the
// handshake. The caller clears it with conn.SetDeadline(time.Time{}).
func dialConn(ctx context.Context, p Params) (net.Conn, error) {
	d := net.Dialer{Timeout: p.Timeout}
	conn, err := d.DialContext(ctx, "tcp", p.Address())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", p.Address(), err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else if p.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(p.Timeout))
	}
	return conn, nil
}

// dialSSH establishes an authenticated SSH client connection.
func dialSSH(ctx context.Context, p Params) (*ssh.Client, error) {
	config, err := clientConfig(p)
	if err != nil {
		return nil, err
	}

	conn, err := dialConn(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("SSH %w", err)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, p.Address(), config)
	if err != nil {
		conn.Close()
		return nil, interrupted(ctx, fmt.Sprintf("SSH handshake with %s", p.Address()), err)
	}
	_ = conn.SetDeadline(time.Time{})

	return ssh.NewClient(c, chans, reqs), nil
}
