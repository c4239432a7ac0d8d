package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest"

	"cryptoetl/internal/logic"
	"cryptoetl/internal/svc"
	"cryptoetl/internal/types"
)

const prefix = "/api/v1/market"

// Routes lists the read-only analytics endpoints.
func Routes(serverCtx *svc.APIContext) []rest.Route {
	return []rest.Route{
		{Method: http.MethodGet, Path: "/summary", Handler: plainHandler(serverCtx, (*logic.MarketLogic).Summary)},
		{Method: http.MethodGet, Path: "/sentiment", Handler: plainHandler(serverCtx, (*logic.MarketLogic).Sentiment)},
		{Method: http.MethodGet, Path: "/latest", Handler: plainHandler(serverCtx, (*logic.MarketLogic).Latest)},
		{Method: http.MethodGet, Path: "/tiers", Handler: plainHandler(serverCtx, (*logic.MarketLogic).Tiers)},
		{Method: http.MethodGet, Path: "/freshness", Handler: plainHandler(serverCtx, (*logic.MarketLogic).Freshness)},
		{Method: http.MethodGet, Path: "/gainers", Handler: reqHandler[types.LimitReq](serverCtx, (*logic.MarketLogic).Gainers)},
		{Method: http.MethodGet, Path: "/losers", Handler: reqHandler[types.LimitReq](serverCtx, (*logic.MarketLogic).Losers)},
		{Method: http.MethodGet, Path: "/top-market-cap", Handler: reqHandler[types.LimitReq](serverCtx, (*logic.MarketLogic).TopMarketCap)},
		{Method: http.MethodGet, Path: "/top-volume", Handler: reqHandler[types.LimitReq](serverCtx, (*logic.MarketLogic).TopVolume)},
		{Method: http.MethodGet, Path: "/volatility", Handler: reqHandler[types.LimitReq](serverCtx, (*logic.MarketLogic).Volatility)},
		{Method: http.MethodGet, Path: "/dominance", Handler: reqHandler[types.LimitReq](serverCtx, (*logic.MarketLogic).Dominance)},
		{Method: http.MethodGet, Path: "/liquidity", Handler: reqHandler[types.LimitReq](serverCtx, (*logic.MarketLogic).Liquidity)},
		{Method: http.MethodGet, Path: "/history/:coin", Handler: reqHandler[types.HistoryReq](serverCtx, (*logic.MarketLogic).History)},
	}
}

func RegisterHandlers(server *rest.Server, serverCtx *svc.APIContext) {
	SetupErrorHandler()
	server.AddRoutes(Routes(serverCtx), rest.WithPrefix(prefix))
}
