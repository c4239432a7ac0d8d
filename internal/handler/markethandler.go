package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest/httpx"

	"cryptoetl/internal/analytics"
	"cryptoetl/internal/logic"
	"cryptoetl/internal/svc"
	"cryptoetl/internal/types"
)

// badRequest marks request parsing failures.
type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

// SetupErrorHandler maps errors onto status codes: caller mistakes are 400,
// anything else is logged and reported as 500 without detail.
func SetupErrorHandler() {
	httpx.SetErrorHandlerCtx(func(ctx context.Context, err error) (int, any) {
		var br badRequest
		switch {
		case errors.As(err, &br), errors.Is(err, analytics.ErrCoinRequired):
			return http.StatusBadRequest, &types.ErrorResp{Code: http.StatusBadRequest, Message: err.Error()}
		default:
			logx.WithContext(ctx).Errorf("handler: request failed err=%v", err)
			return http.StatusInternalServerError, &types.ErrorResp{
				Code:    http.StatusInternalServerError,
				Message: http.StatusText(http.StatusInternalServerError),
			}
		}
	})
}

func plainHandler[R any](svcCtx *svc.APIContext, call func(*logic.MarketLogic) (R, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := logic.NewMarketLogic(r.Context(), svcCtx)
		resp, err := call(l)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}

func reqHandler[Req any, R any](svcCtx *svc.APIContext, call func(*logic.MarketLogic, *Req) (R, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, badRequest{err: err})
			return
		}

		l := logic.NewMarketLogic(r.Context(), svcCtx)
		resp, err := call(l, &req)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}
