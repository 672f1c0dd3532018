package domain

// OrderType determines a limit order's trigger comparison and trade side.
type OrderType string

const (
	OrderLimitBuy   OrderType = "LIMIT_BUY"   // buy when price <= target
	OrderLimitSell  OrderType = "LIMIT_SELL"  // sell when price >= target
	OrderStopLoss   OrderType = "STOP_LOSS"   // sell when price <= target
	OrderTakeProfit OrderType = "TAKE_PROFIT" // sell when price >= target
)

// OrderStatus is the lifecycle state of a limit order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderTriggered OrderStatus = "TRIGGERED"
	OrderExecuting OrderStatus = "EXECUTING"
	OrderFilled    OrderStatus = "FILLED"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderFailed    OrderStatus = "FAILED"
	OrderExpired   OrderStatus = "EXPIRED"
)

// LimitOrder is a standing order evaluated against the price feed.
// Mutated only by the limit order engine; terminal once status leaves
// PENDING/TRIGGERED/EXECUTING.
type LimitOrder struct {
	ID          string
	Type        OrderType
	Mint        string
	Symbol      string
	TargetPrice float64 // USD per token
	Amount      float64 // SOL for buys, tokens for sells
	Status      OrderStatus
	CreatedAt   int64  // unix seconds
	ExpiresAt   int64  // unix seconds, 0 = never

	FillPrice     float64
	FillAmount    float64
	FillSignature string
	FillTime      int64
	Error         string
}

// IsBuySide reports whether the order spends SOL when it fills.
func (o *LimitOrder) IsBuySide() bool {
	return o.Type == OrderLimitBuy
}

// Terminal reports whether the order can no longer change state.
func (o *LimitOrder) Terminal() bool {
	switch o.Status {
	case OrderFilled, OrderCancelled, OrderFailed, OrderExpired:
		return true
	}
	return false
}

// ShouldTrigger evaluates the order's trigger condition at the given price.
func (o *LimitOrder) ShouldTrigger(price float64) bool {
	switch o.Type {
	case OrderLimitBuy, OrderStopLoss:
		return price <= o.TargetPrice
	case OrderLimitSell, OrderTakeProfit:
		return price >= o.TargetPrice
	}
	return false
}
