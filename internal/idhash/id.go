// Package idhash computes deterministic record identifiers.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// idLen is the length of the short hex identifier.
const idLen = 16

// PositionID computes a deterministic position id.
// Formula: SHA256("pos|" + mint|entrySignature|entryTime), truncated hex.
func PositionID(mint, entrySignature string, entryTime int64) string {
	return short(fmt.Sprintf("pos|%s|%s|%d", mint, entrySignature, entryTime))
}

// OrderID computes a deterministic limit order id.
// Formula: SHA256("ord|" + type|mint|targetPrice|createdAt), truncated hex.
func OrderID(orderType, mint string, targetPrice float64, createdAt int64) string {
	return short(fmt.Sprintf("ord|%s|%s|%.12g|%d", orderType, mint, targetPrice, createdAt))
}

// TradeID computes a deterministic trade id for synthetic executions.
// Formula: SHA256("trade|" + inputMint|outputMint|unixNano), truncated hex.
func TradeID(inputMint, outputMint string, unixNano int64) string {
	return short(fmt.Sprintf("trade|%s|%s|%d", inputMint, outputMint, unixNano))
}

// SwapID computes a deterministic id for a parsed swap audit row.
// Formula: SHA256("swap|" + wallet|signature), truncated hex.
func SwapID(wallet, signature string) string {
	return short(fmt.Sprintf("swap|%s|%s", wallet, signature))
}

func short(data string) string {
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])[:idLen]
}
