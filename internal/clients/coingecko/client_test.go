package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/markets", r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
		assert.Equal(t, "bitcoin,ethereum", r.URL.Query().Get("ids"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":64000.5,"price_change_percentage_24h":1.2},
			{"id":"ethereum","symbol":"eth","name":"Ethereum","current_price":3100.25,"price_change_percentage_24h":-0.8}
		]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, zerolog.Nop())

	coins, err := client.GetMarkets(context.Background(), []string{"bitcoin", "ethereum"})
	require.NoError(t, err)
	require.Len(t, coins, 2)

	assert.Equal(t, "bitcoin", coins[0].ID)
	assert.Equal(t, 64000.5, coins[0].CurrentPrice)
	assert.Equal(t, "eth", coins[1].Symbol)
	assert.Equal(t, -0.8, coins[1].ChangePct24h)
}

func TestGetMarketChart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/bitcoin/market_chart", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("days"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"prices":[[1700000000000,64000.5],[1700003600000,64100.0]],"market_caps":[],"total_volumes":[]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, zerolog.Nop())

	chart, err := client.GetMarketChart(context.Background(), "bitcoin", "7")
	require.NoError(t, err)
	require.Len(t, chart.Prices, 2)
	assert.Equal(t, 64000.5, chart.Prices[0][1])
}

func TestGetMarketChartRequiresID(t *testing.T) {
	client := NewClient("http://localhost", 5*time.Second, zerolog.Nop())

	_, err := client.GetMarketChart(context.Background(), "", "7")
	assert.Error(t, err)
}

func TestGetMarketsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, zerolog.Nop())

	_, err := client.GetMarkets(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}
