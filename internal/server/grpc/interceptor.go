package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/diagrams/internal/common"
	"github.com/dmitrijs2005/diagrams/internal/server/auth"
	"github.com/dmitrijs2005/diagrams/internal/server/models"
	"github.com/dmitrijs2005/diagrams/internal/server/ratelimit"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type ctxKey string

const identityKey ctxKey = "identity"

var protectedMethods = map[string]bool{
	WhoAmIMethod: true,
}

var rateLimitedMethods = map[string]bool{
	LoginMethod: true,
}

func identityFromContext(ctx context.Context) (*models.SessionIdentity, bool) {
	id, ok := ctx.Value(identityKey).(*models.SessionIdentity)
	return id, ok
}

// statusFromError keeps auth failures generic, as the HTTP API does.
func statusFromError(err error) error {
	switch {
	case errors.Is(err, common.ErrNotAuthenticated):
		return status.Error(codes.Unauthenticated, "Not authenticated")
	case errors.Is(err, common.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, "Invalid credentials")
	case common.IsAuthError(err):
		return status.Error(codes.Unauthenticated, "Could not validate credentials")
	default:
		return status.Error(codes.Internal, "Internal server error")
	}
}

// peerKey is the caller's host, the same key the HTTP login limiter uses.
func peerKey(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	return ratelimit.HostKey(p.Addr.String())
}

func (s *GRPCServer) loginRateInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !rateLimitedMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	key := peerKey(ctx)
	if !s.limiter.Allow(key) {
		s.logger.Warn(ctx, "login rate limited", "peer", key)
		return nil, status.Error(codes.ResourceExhausted, "Too many requests")
	}
	return handler(ctx, req)
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !protectedMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(strings.ToLower(common.AuthorizationHeaderName)); len(values) > 0 {
			header = values[0]
		}
	}

	token, err := auth.BearerToken(header)
	if err != nil {
		return nil, statusFromError(err)
	}

	identity, err := s.users.Authenticate(ctx, token)
	if err != nil {
		if !common.IsAuthError(err) {
			s.logger.Error(ctx, "authenticate failed", "method", info.FullMethod, "error", err)
		}
		return nil, statusFromError(err)
	}

	return handler(context.WithValue(ctx, identityKey, identity), req)
}
