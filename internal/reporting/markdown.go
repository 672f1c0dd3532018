package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders the report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Copy Trading Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Tracked Wallets | %d |\n", r.Summary.TrackedWallets))
	sb.WriteString(fmt.Sprintf("| Recorded Swaps | %d |\n", r.Summary.RecordedSwaps))
	sb.WriteString(fmt.Sprintf("| Open Positions | %d |\n", r.Summary.OpenPositions))
	sb.WriteString(fmt.Sprintf("| Closed Positions | %d |\n", r.Summary.ClosedPositions))
	sb.WriteString(fmt.Sprintf("| Position Win Rate | %.2f%% |\n", r.Summary.PositionWinRate))
	sb.WriteString(fmt.Sprintf("| Pending Orders | %d |\n", r.Summary.PendingOrders))
	sb.WriteString(fmt.Sprintf("| Filled Orders | %d |\n", r.Summary.FilledOrders))
	sb.WriteString("\n")

	sb.WriteString("## Leaderboard\n\n")
	if len(r.Leaderboard) > 0 {
		sb.WriteString("| Rank | Wallet | Label | Trades | Realized SOL | Unrealized SOL | Total SOL | Win Rate |\n")
		sb.WriteString("|------|--------|-------|--------|--------------|----------------|-----------|----------|\n")
		for _, w := range r.Leaderboard {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %d | %.4f | %.4f | %.4f | %.2f%% |\n",
				w.Rank, w.Wallet, w.Label, w.TradeCount,
				w.RealizedSOL, w.UnrealizedSOL, w.TotalSOL, w.WinRate()*100))
		}
		sb.WriteString("\n")

		for _, w := range r.Leaderboard {
			if len(w.Tokens) == 0 {
				continue
			}
			sb.WriteString(fmt.Sprintf("### %s\n\n", w.Wallet))
			sb.WriteString("| Token | Bought | Sold | Holdings | Cost SOL | Proceeds SOL | Realized SOL |\n")
			sb.WriteString("|-------|--------|------|----------|----------|--------------|-------------|\n")
			for _, tok := range w.Tokens {
				sb.WriteString(fmt.Sprintf("| %s | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f |\n",
					tok.Mint, tok.TotalBought, tok.TotalSold, tok.Holdings,
					tok.TotalCostSOL, tok.TotalProceeds, tok.RealizedPnL()))
			}
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString("No trading activity recorded.\n\n")
	}

	sb.WriteString("## Positions\n\n")
	if len(r.Positions) > 0 {
		sb.WriteString("| ID | Token | Status | Entry | Exit | PnL% |\n")
		sb.WriteString("|----|-------|--------|-------|------|------|\n")
		for _, p := range r.Positions {
			token := p.Symbol
			if token == "" {
				token = p.Mint
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %.8f | %.8f | %.2f |\n",
				p.ID, token, p.Status, p.EntryPrice, p.ExitPrice, p.PnLPct))
		}
	} else {
		sb.WriteString("No positions recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
