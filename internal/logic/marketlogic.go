// Package logic turns analytics results into API responses.
package logic

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"cryptoetl/internal/analytics"
	"cryptoetl/internal/svc"
	"cryptoetl/internal/types"
)

type MarketLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.APIContext
}

func NewMarketLogic(ctx context.Context, svcCtx *svc.APIContext) *MarketLogic {
	return &MarketLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func list[T any](items []T, err error) (*types.ListResp, error) {
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return &types.ListResp{Count: len(items), Items: items}, nil
}

func (l *MarketLogic) Summary() (any, error) {
	return l.svcCtx.Reader.MarketSummary(l.ctx)
}

func (l *MarketLogic) Sentiment() (any, error) {
	return l.svcCtx.Reader.Sentiment(l.ctx)
}

func (l *MarketLogic) Latest() (*types.ListResp, error) {
	return list[analytics.Coin](l.svcCtx.Reader.LatestSnapshots(l.ctx))
}

func (l *MarketLogic) Gainers(req *types.LimitReq) (*types.ListResp, error) {
	return list[analytics.Mover](l.svcCtx.Reader.TopGainers(l.ctx, req.Limit))
}

func (l *MarketLogic) Losers(req *types.LimitReq) (*types.ListResp, error) {
	return list[analytics.Mover](l.svcCtx.Reader.TopLosers(l.ctx, req.Limit))
}

func (l *MarketLogic) TopMarketCap(req *types.LimitReq) (*types.ListResp, error) {
	return list[analytics.CapEntry](l.svcCtx.Reader.TopByMarketCap(l.ctx, req.Limit))
}

func (l *MarketLogic) TopVolume(req *types.LimitReq) (*types.ListResp, error) {
	return list[analytics.VolumeEntry](l.svcCtx.Reader.TopByVolume(l.ctx, req.Limit))
}

func (l *MarketLogic) Volatility(req *types.LimitReq) (*types.ListResp, error) {
	return list[analytics.VolatilityEntry](l.svcCtx.Reader.VolatilityRanking(l.ctx, req.Limit))
}

func (l *MarketLogic) Dominance(req *types.LimitReq) (*types.ListResp, error) {
	return list[analytics.DominanceEntry](l.svcCtx.Reader.Dominance(l.ctx, req.Limit))
}

func (l *MarketLogic) Tiers() (*types.ListResp, error) {
	return list[analytics.Tier](l.svcCtx.Reader.PriceTiers(l.ctx))
}

func (l *MarketLogic) Liquidity(req *types.LimitReq) (*types.ListResp, error) {
	return list[analytics.LiquidityEntry](l.svcCtx.Reader.LiquidityRatio(l.ctx, req.Limit))
}

func (l *MarketLogic) History(req *types.HistoryReq) (*types.ListResp, error) {
	return list[analytics.HistoryPoint](l.svcCtx.Reader.PriceHistory(l.ctx, req.Coin, req.Limit))
}

func (l *MarketLogic) Freshness() (*types.FreshnessResp, error) {
	interval := l.svcCtx.Config.Interval
	f, err := l.svcCtx.Reader.Freshness(l.ctx, interval, l.svcCtx.Now())
	if err != nil {
		return nil, err
	}
	resp := &types.FreshnessResp{
		IntervalSeconds: interval.Seconds(),
		Stale:           f.Stale,
	}
	if f.HasData {
		at := f.ExtractedAt
		resp.ExtractedAt = &at
		resp.AgeSeconds = f.Age.Round(time.Millisecond).Seconds()
	}
	if f.Stale {
		l.Infow("market data is stale", logx.Field("age_seconds", resp.AgeSeconds))
	}
	return resp, nil
}
