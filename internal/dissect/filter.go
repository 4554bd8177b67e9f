// Package dissect implements the frame filter.
package dissect

import (
	"fmt"

	"golang.org/x/net/bpf"
)

// snapLen is the accept length returned by the filter.
const snapLen = 262144

// tcpOverIP accepts Ethernet frames carrying TCP over IPv4 or IPv6, with at most
// one VLAN tag. X holds the VLAN offset.
var tcpOverIP = []bpf.Instruction{
	bpf.LoadConstant{Dst: bpf.RegX, Val: 0},
	bpf.LoadAbsolute{Off: 12, Size: 2},
	bpf.JumpIf{Cond: bpf.JumpEqual, Val: etherTypeVLAN, SkipFalse: 2},
	bpf.LoadConstant{Dst: bpf.RegX, Val: vlanHeaderLen},
	bpf.LoadAbsolute{Off: 16, Size: 2},
	bpf.JumpIf{Cond: bpf.JumpEqual, Val: etherTypeIPv4, SkipFalse: 2},
	bpf.LoadIndirect{Off: ethernetHeaderLen + 9, Size: 1},
	bpf.Jump{Skip: 2},
	bpf.JumpIf{Cond: bpf.JumpEqual, Val: etherTypeIPv6, SkipFalse: 3},
	bpf.LoadIndirect{Off: ethernetHeaderLen + 6, Size: 1},
	bpf.JumpIf{Cond: bpf.JumpEqual, Val: protocolTCP, SkipFalse: 1},
	bpf.RetConstant{Val: snapLen},
	bpf.RetConstant{Val: 0},
}

// frameFilter runs the compiled filter program.
type frameFilter struct {
	vm *bpf.VM
}

func newFrameFilter() (*frameFilter, error) {
	if _, err := bpf.Assemble(tcpOverIP); err != nil {
		return nil, fmt.Errorf("assemble frame filter: %w", err)
	}
	vm, err := bpf.NewVM(tcpOverIP)
	if err != nil {
		return nil, fmt.Errorf("load frame filter: %w", err)
	}
	return &frameFilter{vm: vm}, nil
}

// Match reports whether the filter accepts the frame.
func (f *frameFilter) Match(frame []byte) bool {
	n, err := f.vm.Run(frame)
	return err == nil && n > 0
}
