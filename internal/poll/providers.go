package poll

import (
	"context"
	"net/url"
	"strings"

	"github.com/joshua-vybe/feedbridge/internal/model"
	"github.com/joshua-vybe/feedbridge/internal/rest"
)

// endpoint is one pollable price provider.
type endpoint struct {
	name  string
	fetch func(ctx context.Context) ([]model.Tick, error)
}

// newCoinGeckoEndpoint polls the primary provider. Response shape:
//
//	{"bitcoin": {"usd": 64123.5}, "ethereum": {"usd": 3321.04}}
func newCoinGeckoEndpoint(client *rest.Client, assetIDs []string) *endpoint {
	return &endpoint{
		name: "coingecko",
		fetch: func(ctx context.Context) ([]model.Tick, error) {
			query := url.Values{
				"ids":           []string{strings.Join(assetIDs, ",")},
				"vs_currencies": []string{"usd"},
			}

			var resp map[string]map[string]float64
			if err := client.Get(ctx, "/api/v3/simple/price", query, &resp); err != nil {
				return nil, err
			}

			ticks := make([]model.Tick, 0, len(assetIDs))
			for _, id := range assetIDs {
				quote, ok := resp[id]
				if !ok {
					continue
				}
				price, ok := quote["usd"]
				if !ok {
					continue
				}
				ticks = append(ticks, model.NewPriceTick(model.Symbol(id), price))
			}
			return ticks, nil
		},
	}
}

// newCryptoCompareEndpoint polls the secondary provider, which keys
// prices by currency code rather than asset identifier:
//
//	{"BTC": {"USD": 64123.5}, "ETH": {"USD": 3321.04}}
func newCryptoCompareEndpoint(client *rest.Client, apiKey string, assetIDs []string) *endpoint {
	symbols := make([]string, 0, len(assetIDs))
	currencies := make([]string, 0, len(assetIDs))
	for _, id := range assetIDs {
		sym := model.Symbol(id)
		symbols = append(symbols, sym)
		currencies = append(currencies, model.BaseCurrency(sym))
	}

	return &endpoint{
		name: "cryptocompare",
		fetch: func(ctx context.Context) ([]model.Tick, error) {
			query := url.Values{
				"fsyms":   []string{strings.Join(currencies, ",")},
				"tsyms":   []string{"USD"},
				"api_key": []string{apiKey},
			}

			var resp map[string]map[string]float64
			if err := client.Get(ctx, "/data/pricemulti", query, &resp); err != nil {
				return nil, err
			}

			ticks := make([]model.Tick, 0, len(symbols))
			for i, sym := range symbols {
				quote, ok := resp[currencies[i]]
				if !ok {
					continue
				}
				price, ok := quote["USD"]
				if !ok {
					continue
				}
				ticks = append(ticks, model.NewPriceTick(sym, price))
			}
			return ticks, nil
		},
	}
}
