// Package model defines the normalized types shared by all feed
// connectors.
//
// Conventions:
//   - Prices: float64 dollars (crypto) or float64 probability 0.00-1.00
//     (prediction market yes/no sides)
//   - Timestamps: int64 milliseconds since Unix epoch
//   - Markets: "SYMBOL/USD" for crypto, "source:id" for push feeds
package model
