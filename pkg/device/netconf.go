package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Juniper/go-netconf/netconf"

	"github.com/newtron-network/devapi/pkg/util"
)

// getRPC wraps a subtree filter in a <get> operation.
const getRPC = `<get><filter type="subtree">%s</filter></get>`

// NETCONFDialer opens NETCONF-over-SSH sessions.
type NETCONFDialer struct{}

// DialNetconf connects to p.Address and completes the NETCONF hello exchange.
func (NETCONFDialer) DialNetconf(ctx context.Context, p Params) (NetconfSession, error) {
	config, err := clientConfig(p)
	if err != nil {
		return nil, err
	}

	conn, err := dialConn(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("NETCONF %w", err)
	}

	s, err := netconf.NewSSHSession(conn, config)
	if err != nil {
		conn.Close()
		return nil, interrupted(ctx, fmt.Sprintf("NETCONF session with %s", p.Address()), err)
	}
	_ = conn.SetDeadline(time.Time{})

	util.WithDevice(p.Host).Debugf("NETCONF session %d open (%s)", s.SessionID, p.DeviceCapability)
	return &netconfSession{exec: s.Exec, closeFn: s.Close}, nil
}

// netconfSession adapts a go-netconf session to NetconfSession.
type netconfSession struct {
	exec    func(methods ...netconf.RPCMethod) (*netconf.RPCReply, error)
	closeFn func() error

	once     sync.Once
	closeErr error
}

func (s *netconfSession) Close() error {
	s.once.Do(func() {
		s.closeErr = s.closeFn()
	})
	return s.closeErr
}

// Get returns the reply data, including its enclosing <data> element.
func (s *netconfSession) Get(ctx context.Context, filter string) (string, error) {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	reply, err := s.exec(netconf.RawMethod(fmt.Sprintf(getRPC, filter)))
	if err != nil {
		return "", interrupted(ctx, "get", err)
	}
	if reply == nil {
		return "", errors.New("get: empty reply")
	}
	if len(reply.Errors) > 0 {
		msgs := make([]string, 0, len(reply.Errors))
		for _, e := range reply.Errors {
			msgs = append(msgs, e.Error())
		}
		return "", fmt.Errorf("get: rpc-error: %s", strings.Join(msgs, "; "))
	}
	return reply.Data, nil
}
