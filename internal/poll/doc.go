// Package poll implements the crypto price feed connector.
//
// The connector:
//   - Polls one REST price provider every second for a configured
//     asset basket
//   - Rotates round-robin to the next provider endpoint on any failure
//     (the secondary provider is only in the list when its API key is
//     configured)
//   - Normalizes provider-specific response shapes into Ticks
//   - Publishes each tick to its asset topic and write-through caches
//     it with a 1s TTL
package poll
