package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders the leaderboard as a CSV string, one row per
// wallet-token pair.
func RenderCSV(rows []WalletRow) string {
	var sb strings.Builder

	sb.WriteString("rank,wallet,label,mint,total_bought,total_sold,holdings,")
	sb.WriteString("total_cost_sol,total_proceeds_sol,realized_sol,trades\n")

	for _, w := range rows {
		for _, tok := range w.Tokens {
			sb.WriteString(fmt.Sprintf("%d,%s,%s,%s,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%d\n",
				w.Rank,
				w.Wallet,
				w.Label,
				tok.Mint,
				tok.TotalBought,
				tok.TotalSold,
				tok.Holdings,
				tok.TotalCostSOL,
				tok.TotalProceeds,
				tok.RealizedPnL(),
				tok.TradeCount,
			))
		}
	}

	return sb.String()
}
