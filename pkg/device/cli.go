package device

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"

	"github.com/newtron-network/devapi/pkg/util"
)

// sessionPreparation is sent once after login so output is never paged.
var sessionPreparation = []string{
	"terminal length 0",
	"terminal width 511",
}

// SSHDialer opens interactive CLI sessions over SSH with a PTY shell.
type SSHDialer struct{}

// DialCLI connects, authenticates, starts a shell and waits for the first
// prompt. Every failure closes whatever was opened.
func (SSHDialer) DialCLI(ctx context.Context, p Params) (CLISession, error) {
	client, err := dialSSH(ctx, p)
	if err != nil {
		return nil, err
	}

	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("SSH session: %w", err)
	}

	closeAll := func() error {
		sess.Close()
		return client.Close()
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := sess.RequestPty("vt100", 24, 511, modes); err != nil {
		closeAll()
		return nil, fmt.Errorf("requesting PTY: %w", err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := sess.Shell(); err != nil {
		closeAll()
		return nil, fmt.Errorf("starting shell: %w", err)
	}

	c := newCLISession(newShell(stdout, stdin), closeAll).withSecret(p.EnableSecret())
	if err := c.prepare(ctx); err != nil {
		c.Close()
		return nil, err
	}

	util.WithDevice(p.Host).Debugf("CLI session open (%s)", p.DeviceType)
	return c, nil
}

// cliSession implements CLISession on top of a shell. Closing the session
// unblocks any pending read, which is how context expiry interrupts it.
type cliSession struct {
	sh     *shell
	secret string

	closeFn  func() error
	once     sync.Once
	closeErr error
}

func newCLISession(sh *shell, closeFn func() error) *cliSession {
	return &cliSession{sh: sh, closeFn: closeFn}
}

func (c *cliSession) withSecret(secret string) *cliSession {
	c.secret = secret
	return c
}

// Close is idempotent
func (c *cliSession) Close() error {
	c.once.Do(func() {
		c.closeErr = c.closeFn()
	})
	return c.closeErr
}

func (c *cliSession) closeOnDone(ctx context.Context) (stop func() bool) {
	return context.AfterFunc(ctx, func() { _ = c.Close() })
}

// prepare waits for the login prompt and disables paging.
func (c *cliSession) prepare(ctx context.Context) error {
	defer c.closeOnDone(ctx)()

	if _, _, err := c.sh.readUntil(stopPrompt); err != nil {
		return interrupted(ctx, "waiting for prompt", err)
	}
	for _, cmd := range sessionPreparation {
		if _, err := c.sh.run(cmd); err != nil {
			return interrupted(ctx, cmd, err)
		}
	}
	return nil
}

// Enable enters privileged mode, answering the password prompt with the
// enable secret.
func (c *cliSession) Enable(ctx context.Context) error {
	if c.sh.privileged() {
		return nil
	}
	defer c.closeOnDone(ctx)()

	if err := c.sh.send("enable"); err != nil {
		return interrupted(ctx, "enable", err)
	}
	out, kind, err := c.sh.readUntil(stopPrompt, stopPassword)
	if err != nil {
		return interrupted(ctx, "enable", err)
	}

	if kind == stopPassword {
		if err := c.sh.send(c.secret); err != nil {
			return interrupted(ctx, "enable secret", err)
		}
		out, kind, err = c.sh.readUntil(stopPrompt, stopPassword)
		if err != nil {
			return interrupted(ctx, "enable secret", err)
		}
		if kind == stopPassword {
			return fmt.Errorf("%w: enable secret rejected", ErrPrivilege)
		}
	}

	if !c.sh.privileged() {
		return fmt.Errorf("%w: %s", ErrPrivilege, firstErrorLine(out))
	}
	return nil
}

// SendConfigSet enters configuration mode unless the sequence does so
// itself, sends each command in order and leaves configuration mode if the
// sequence did not. The first rejected command stops the set.
func (c *cliSession) SendConfigSet(ctx context.Context, commands []string) (string, error) {
	defer c.closeOnDone(ctx)()

	var out strings.Builder

	if !c.sh.inConfigMode() && !entersConfigMode(commands) {
		o, err := c.sh.run("configure terminal")
		out.WriteString(o)
		if err != nil {
			return out.String(), interrupted(ctx, "entering configuration mode", err)
		}
		if !c.sh.inConfigMode() {
			return out.String(), &CommandError{Command: "configure terminal", Output: o}
		}
	}

	for _, cmd := range commands {
		o, err := c.sh.run(cmd)
		out.WriteString(o)
		if err != nil {
			return out.String(), interrupted(ctx, fmt.Sprintf("sending %q", cmd), err)
		}
		if hasCommandError(o) {
			return out.String(), &CommandError{Command: cmd, Output: o}
		}
	}

	if c.sh.inConfigMode() {
		o, err := c.exitConfigMode()
		out.WriteString(o)
		if err != nil {
			return out.String(), interrupted(ctx, "leaving configuration mode", err)
		}
	}

	return out.String(), nil
}

// exitConfigMode sends "end", declining to commit anything the sequence
// left uncommitted.
func (c *cliSession) exitConfigMode() (string, error) {
	if err := c.sh.send("end"); err != nil {
		return "", err
	}
	out, kind, err := c.sh.readUntil(stopPrompt, stopConfirm)
	if err != nil || kind != stopConfirm {
		return out, err
	}
	more, err := c.sh.run("no")
	return out + more, err
}

func entersConfigMode(commands []string) bool {
	return len(commands) > 0 && strings.HasPrefix(strings.TrimSpace(commands[0]), "conf")
}
