// Package parser turns raw Solana transactions into swap events by
// comparing token balance snapshots before and after execution.
package parser

import (
	"math"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
)

// deltaEpsilon filters float noise left over from lamport conversion.
const deltaEpsilon = 1e-9

// SwapParser extracts swap events from confirmed transactions.
// Parsing is pure and deterministic; the same transaction always yields
// the same event.
type SwapParser struct{}

// NewSwapParser creates a new swap parser.
func NewSwapParser() *SwapParser {
	return &SwapParser{}
}

// Parse extracts the swap performed by subject in tx. Returns nil when the
// transaction failed on chain, touched no allow-listed DEX program, or the
// subject's balance deltas do not form a swap (fewer than two non-zero
// mints, or no clear input/output pair).
func (p *SwapParser) Parse(tx *solana.Transaction, subject string) *domain.SwapEvent {
	if tx == nil || tx.Meta == nil || tx.Message == nil {
		return nil
	}
	if tx.Meta.Err != nil {
		return nil
	}

	venue := detectVenue(tx.Message)
	if venue == "" {
		return nil
	}

	deltas := tokenDeltas(tx.Meta, subject)
	foldNativeSOL(deltas, tx, subject)

	inputMint, outputMint := "", ""
	inputDelta, outputDelta := 0.0, 0.0
	for mint, delta := range deltas {
		if math.Abs(delta) < deltaEpsilon {
			continue
		}
		if delta < inputDelta {
			inputDelta = delta
			inputMint = mint
		}
		if delta > outputDelta {
			outputDelta = delta
			outputMint = mint
		}
	}
	if inputMint == "" || outputMint == "" {
		return nil
	}

	return &domain.SwapEvent{
		Wallet:       subject,
		TxSignature:  tx.Signature,
		Slot:         tx.Slot,
		BlockTime:    tx.BlockTime,
		InputMint:    inputMint,
		InputAmount:  -inputDelta,
		OutputMint:   outputMint,
		OutputAmount: outputDelta,
		Direction:    classify(inputMint, outputMint),
		Venue:        venue,
		FeeSOL:       float64(tx.Meta.FeeLamports) / solana.LamportsPerSOL,
		Success:      true,
	}
}

// detectVenue finds the first allow-listed DEX program in the transaction,
// checking static account keys before top-level instruction program IDs.
func detectVenue(msg *solana.TransactionMessage) string {
	for _, key := range msg.AccountKeys {
		if label := VenueLabel(key); label != "" {
			return label
		}
	}
	for _, ins := range msg.Instructions {
		if label := VenueLabel(ins.ProgramID); label != "" {
			return label
		}
	}
	return ""
}

// tokenDeltas computes post-minus-pre UI amounts per mint for token
// accounts owned by subject. A token account present in the pre snapshot
// but missing from the post snapshot was closed during the transaction
// and contributes its full pre balance as a negative delta.
func tokenDeltas(meta *solana.TransactionMeta, subject string) map[string]float64 {
	deltas := make(map[string]float64)

	for _, tb := range meta.PostTokenBalances {
		if tb.Owner == subject {
			deltas[tb.Mint] += tb.UIAmount
		}
	}
	for _, tb := range meta.PreTokenBalances {
		if tb.Owner == subject {
			deltas[tb.Mint] -= tb.UIAmount
		}
	}

	return deltas
}

// foldNativeSOL adds the subject's native lamport delta to the WSOL mint
// so SOL-side swap legs surface even without a wrapped token account.
// When the subject paid the fee, the fee is added back so the delta
// reflects swap flows only.
func foldNativeSOL(deltas map[string]float64, tx *solana.Transaction, subject string) {
	meta, msg := tx.Meta, tx.Message
	if len(meta.PreBalances) != len(msg.AccountKeys) || len(meta.PostBalances) != len(msg.AccountKeys) {
		return
	}

	for i, key := range msg.AccountKeys {
		if key != subject {
			continue
		}
		delta := int64(meta.PostBalances[i]) - int64(meta.PreBalances[i])
		if i == 0 {
			delta += int64(meta.FeeLamports)
		}
		deltas[domain.WSOLMint] += float64(delta) / solana.LamportsPerSOL
		return
	}
}

// classify derives the swap direction from the base-asset set: spending a
// base asset for a token is a buy, the reverse is a sell. Token-for-token
// and base-for-base swaps stay unknown.
func classify(inputMint, outputMint string) domain.Direction {
	inBase := domain.IsBaseMint(inputMint)
	outBase := domain.IsBaseMint(outputMint)

	switch {
	case inBase && !outBase:
		return domain.DirectionBuy
	case !inBase && outBase:
		return domain.DirectionSell
	default:
		return domain.DirectionUnknown
	}
}
