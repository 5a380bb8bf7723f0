// Package connect provides the Connect RPC surface of the jukebox.
//
// Messages are plain Go structs carried by a JSON codec, so clients speak the
// Connect protocol with Content-Type application/json (connect+json for the
// Watch stream). No protobuf codec is registered and application/proto
// requests are rejected.
package connect

import (
	"context"
	"crypto/subtle"

	"connectrpc.com/connect"
	zlog "github.com/rs/zerolog/log"
)

const (
	// AdminTokenHeader is the header name for admin authentication token.
	AdminTokenHeader = "X-Admin-Token"
)

// NewAdminAuthInterceptor creates an interceptor that requires the admin token
// on every unary call it wraps.
func NewAdminAuthInterceptor(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			got := req.Header().Get(AdminTokenHeader)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				zlog.Warn().Msgf("api: admin call rejected: procedure=%s peer=%s", req.Spec().Procedure, req.Peer().Addr)
				return nil, connect.NewError(connect.CodeUnauthenticated, nil)
			}
			return next(ctx, req)
		}
	}
}
