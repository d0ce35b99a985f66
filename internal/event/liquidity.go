package event

import "github.com/ethereum/go-ethereum/common"

// LiquidityAdded is emitted after a provider's collateral enters the pool
type LiquidityAdded struct {
	Asset    common.Address `json:"asset"`
	Amount   int64          `json:"amount"`
	Provider common.Address `json:"provider"`
}

func (e *LiquidityAdded) EventType() EventType { return EventTypeLiquidityAdded }
func (e *LiquidityAdded) EventOwner() *common.Address { return nil }

// LiquidityRemoved is emitted after the administrator withdraws pool collateral
type LiquidityRemoved struct {
	Asset  common.Address `json:"asset"`
	Amount int64          `json:"amount"`
	To     common.Address `json:"to"`
}

func (e *LiquidityRemoved) EventType() EventType { return EventTypeLiquidityRemoved }
func (e *LiquidityRemoved) EventOwner() *common.Address { return nil }
