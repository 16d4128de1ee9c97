package pool

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/kysee/zkpool/zk-pool/chain"
)

// Settlement is the ledger the pool's funds live on. Settle must apply a
// batch of movements atomically.
type Settlement interface {
	Token() common.Address
	Settle(ops []chain.Op) error
}

var _ Settlement = (*chain.Ledger)(nil)

// Routing decides how a withdrawal leaves the pool.
type Routing uint8

const (
	// RouteByFlag sends L1 withdrawals through the bridge and pays the rest directly.
	RouteByFlag Routing = iota
	RouteDirectOnly
	RouteBridgeOnly
)

func (r Routing) String() string {
	switch r {
	case RouteByFlag:
		return "by-flag"
	case RouteDirectOnly:
		return "direct-only"
	case RouteBridgeOnly:
		return "bridge-only"
	default:
		return fmt.Sprintf("routing(%d)", uint8(r))
	}
}

func ParseRouting(s string) (Routing, error) {
	for _, r := range []Routing{RouteByFlag, RouteDirectOnly, RouteBridgeOnly} {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown routing %q", ErrInvalidConfig, s)
}

// Egress returns the operation that pays a withdrawal.
func (r Routing) Egress(isL1Withdrawal bool) chain.OpKind {
	switch r {
	case RouteDirectOnly:
		return chain.OpTransfer
	case RouteBridgeOnly:
		return chain.OpBridgeOut
	default:
		if isL1Withdrawal {
			return chain.OpBridgeOut
		}
		return chain.OpTransfer
	}
}

// fundSource tells where a positive external amount comes from.
type fundSource uint8

const (
	// pulled from the sender's allowance
	fromSender fundSource = iota
	// already credited to the pool by the bridge
	fromBridge
)

// settlementOps lists the movements of one transaction.
func (p *Pool) settlementOps(sender common.Address, src fundSource, t *txView) []chain.Op {
	var ops []chain.Op
	self := p.cfg.Self
	switch t.ext.Sign() {
	case 1:
		if src == fromSender {
			ops = append(ops, chain.Op{Kind: chain.OpTransferFrom, Spender: self, From: sender, To: self, Amount: t.extAbs})
		}
	case -1:
		ops = append(ops, chain.Op{Kind: p.cfg.Routing.Egress(t.tx.Ext.IsL1Withdrawal), From: self, To: t.tx.Ext.Recipient, Amount: t.extAbs})
	}
	if !t.tx.Args.Fee.IsZero() {
		ops = append(ops, chain.Op{Kind: chain.OpTransfer, From: self, To: t.tx.Ext.Relayer, Amount: new(uint256.Int).Set(t.tx.Args.Fee)})
	}
	return ops
}
