package requestdata

import (
	"context"
)

type ctxKey struct{}

var requestDataKey ctxKey

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if rd, ok := ctx.Value(requestDataKey).(*RequestData); ok {
		return rd
	}
	return nil
}

// RequestData is the per-request principal. UserID 0 means guest.
type RequestData struct {
	TokenString string
	UserID      int64
	KcUserID    string
	AdultYn     string
	AdminYn     string
}

func (rd *RequestData) SignedIn() bool {
	return rd != nil && rd.UserID != 0
}
