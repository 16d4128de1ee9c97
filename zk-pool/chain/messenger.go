package chain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// CrossChainMessage is the execution context of a call relayed by the messenger:
// Caller is the immediate caller, SourceChainID and Sender identify the
// originating account on the other chain.
type CrossChainMessage struct {
	Caller        common.Address
	SourceChainID uint64
	Sender        common.Address
}

// Messenger delivers messages and bridged tokens from another chain.
type Messenger struct {
	Address common.Address
	ledger  *Ledger
}

func NewMessenger(addr common.Address, ledger *Ledger) *Messenger {
	return &Messenger{Address: addr, ledger: ledger}
}

// Relay wraps a message sent by sender on chain source.
func (m *Messenger) Relay(source uint64, sender common.Address) CrossChainMessage {
	return CrossChainMessage{Caller: m.Address, SourceChainID: source, Sender: sender}
}

// Deliver credits amount of bridged tokens to `to` before the bridge calls it.
// Delivered tokens cannot be sent back.
func (m *Messenger) Deliver(to common.Address, amount *uint256.Int) {
	m.ledger.Mint(to, amount)
}
