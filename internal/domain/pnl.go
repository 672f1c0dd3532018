package domain

// TokenPosition is the running cost-basis position for one (wallet, mint)
// pair. Amounts are UI token units; cost and proceeds are SOL.
type TokenPosition struct {
	Wallet string
	Mint   string
	Symbol string

	TotalBought   float64
	TotalSold     float64
	TotalCostSOL  float64
	TotalProceeds float64
	Holdings      float64 // clamped at zero

	FirstTradeTime int64
	LastTradeTime  int64
	TradeCount     int64
}

// AvgBuyPrice returns the average SOL cost per token bought.
func (p *TokenPosition) AvgBuyPrice() float64 {
	if p.TotalBought == 0 {
		return 0
	}
	return p.TotalCostSOL / p.TotalBought
}

// RealizedPnL returns proceeds minus cost basis of the sold amount, in SOL.
func (p *TokenPosition) RealizedPnL() float64 {
	return p.TotalProceeds - p.AvgBuyPrice()*p.TotalSold
}

// UnrealizedPnL values remaining holdings at the given SOL price per token.
func (p *TokenPosition) UnrealizedPnL(priceSOL float64) float64 {
	if p.Holdings <= 0 {
		return 0
	}
	return p.Holdings*priceSOL - p.AvgBuyPrice()*p.Holdings
}

// WalletPnL is the aggregated profit and loss summary for one wallet.
type WalletPnL struct {
	Wallet        string
	Label         string
	TradeCount    int64
	TokenCount    int
	RealizedSOL   float64
	UnrealizedSOL float64
	TotalSOL      float64
	Wins          int
	Losses        int
}

// WinRate returns the fraction of closed token positions that were
// profitable, in [0, 1]. Zero when nothing has closed.
func (w *WalletPnL) WinRate() float64 {
	closed := w.Wins + w.Losses
	if closed == 0 {
		return 0
	}
	return float64(w.Wins) / float64(closed)
}
