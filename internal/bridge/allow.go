package bridge

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidChannel is returned for a channel outside the allow-list.
var ErrInvalidChannel = errors.New("invalid channel")

// Allow lists the channels a bridge may send on and receive from.
type Allow struct {
	Send    []string `mapstructure:"send_channels" yaml:"send_channels"`
	Receive []string `mapstructure:"receive_channels" yaml:"receive_channels"`
}

type allowList struct {
	send    map[string]struct{}
	receive map[string]struct{}
}

func newAllowList(a Allow) allowList {
	l := allowList{
		send:    make(map[string]struct{}, len(a.Send)),
		receive: make(map[string]struct{}, len(a.Receive)),
	}
	for _, name := range a.Send {
		l.send[name] = struct{}{}
	}
	for _, name := range a.Receive {
		l.receive[name] = struct{}{}
	}
	return l
}

func (l allowList) checkSend(name string) error {
	if _, ok := l.send[name]; !ok {
		return fmt.Errorf("%w: send on %q", ErrInvalidChannel, name)
	}
	return nil
}

func (l allowList) checkReceive(name string) error {
	if _, ok := l.receive[name]; !ok {
		return fmt.Errorf("%w: receive on %q", ErrInvalidChannel, name)
	}
	return nil
}

func (l allowList) allow() Allow {
	a := Allow{}
	for name := range l.send {
		a.Send = append(a.Send, name)
	}
	for name := range l.receive {
		a.Receive = append(a.Receive, name)
	}
	slices.Sort(a.Send)
	slices.Sort(a.Receive)
	return a
}
