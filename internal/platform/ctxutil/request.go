package ctxutil

import "context"

type requestDataKey struct{}

// RequestData travels with one API request. The trace middleware attaches it
// first and authentication fills in the requester.
type RequestData struct {
	TraceID     string
	RequestID   string
	RequesterID string
	TokenID     string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}

// WithRequester returns a ctx whose request data names requesterID, keeping
// any trace ids already attached.
func WithRequester(ctx context.Context, requesterID, tokenID string) context.Context {
	next := RequestData{}
	if rd := GetRequestData(ctx); rd != nil {
		next = *rd
	}
	next.RequesterID = requesterID
	next.TokenID = tokenID
	return WithRequestData(ctx, &next)
}

// RequesterID returns the authenticated requester, or "" when there is none.
func RequesterID(ctx context.Context) string {
	if rd := GetRequestData(ctx); rd != nil {
		return rd.RequesterID
	}
	return ""
}

func TraceID(ctx context.Context) string {
	if rd := GetRequestData(ctx); rd != nil {
		return rd.TraceID
	}
	return ""
}
