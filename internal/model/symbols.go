package model

import "strings"

// symbolTable maps crypto price-feed asset identifiers to market
// symbols. Identifiers not listed here fall through to the generic
// SYMBOL/USD form.
var symbolTable = map[string]string{
	"bitcoin":  "BTC/USD",
	"ethereum": "ETH/USD",
	"solana":   "SOL/USD",
	"dogecoin": "DOGE/USD",
	"ripple":   "XRP/USD",
}

// Symbol resolves an asset identifier to its market symbol.
func Symbol(assetID string) string {
	if sym, ok := symbolTable[assetID]; ok {
		return sym
	}
	return strings.ToUpper(assetID) + "/USD"
}

// BaseCurrency returns the base half of a market symbol, e.g.
// "BTC" for "BTC/USD". Used by providers that key prices by currency
// code rather than asset identifier.
func BaseCurrency(symbol string) string {
	if i := strings.IndexByte(symbol, '/'); i > 0 {
		return symbol[:i]
	}
	return symbol
}
