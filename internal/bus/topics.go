package bus

// Event bus topics.
const (
	TopicCryptoBTC     = "crypto.ticks.btc"
	TopicCryptoETH     = "crypto.ticks.eth"
	TopicCryptoSOL     = "crypto.ticks.sol"
	TopicCryptoGeneric = "crypto.ticks"

	TopicKalshiTicks     = "kalshi.ticks"
	TopicPolymarketTicks = "polymarket.ticks"

	TopicCancellations = "events.cancelled"
)

// dedicatedTopics maps the high-volume crypto symbols to their own
// topics; all other symbols share the generic topic.
var dedicatedTopics = map[string]string{
	"BTC/USD": TopicCryptoBTC,
	"ETH/USD": TopicCryptoETH,
	"SOL/USD": TopicCryptoSOL,
}

// CryptoTickTopic returns the topic for a crypto market symbol.
func CryptoTickTopic(symbol string) string {
	if topic, ok := dedicatedTopics[symbol]; ok {
		return topic
	}
	return TopicCryptoGeneric
}
