//go:build linux
// +build linux

package netfilter

import (
	"github.com/google/nftables"
	"github.com/google/nftables/binaryutil"
	"github.com/google/nftables/expr"
	"golang.org/x/sys/unix"
)

// chainName is the inbound filtering chain the port rules live in.
const chainName = "input"

// IPv4 header source address offset (RFC 791).
const ipv4SrcOffset = 12

// UDP header destination port offset.
const udpDportOffset = 2

// udpDportExprs matches inbound UDP packets to the protected port.
func udpDportExprs(port uint16) []expr.Any {
	return []expr.Any{
		&expr.Meta{Key: expr.MetaKeyL4PROTO, Register: 1},
		&expr.Cmp{
			Op:       expr.CmpOpEq,
			Register: 1,
			Data:     []byte{unix.IPPROTO_UDP},
		},
		&expr.Payload{
			DestRegister: 1,
			Base:         expr.PayloadBaseTransportHeader,
			Offset:       udpDportOffset,
			Len:          2,
		},
		&expr.Cmp{
			Op:       expr.CmpOpEq,
			Register: 1,
			Data:     binaryutil.BigEndian.PutUint16(port),
		},
	}
}

// acceptFromSetExprs accepts packets to the protected port whose source
// address is a member of the given set.
func acceptFromSetExprs(port uint16, set *nftables.Set) []expr.Any {
	exprs := udpDportExprs(port)
	exprs = append(exprs,
		&expr.Payload{
			DestRegister: 1,
			Base:         expr.PayloadBaseNetworkHeader,
			Offset:       ipv4SrcOffset,
			Len:          4,
		},
		&expr.Lookup{
			SourceRegister: 1,
			SetName:        set.Name,
			SetID:          set.ID,
		},
		&expr.Verdict{Kind: expr.VerdictAccept},
	)
	return exprs
}

// dropPortExprs drops everything else addressed to the protected port.
func dropPortExprs(port uint16) []expr.Any {
	exprs := udpDportExprs(port)
	exprs = append(exprs, &expr.Verdict{Kind: expr.VerdictDrop})
	return exprs
}
