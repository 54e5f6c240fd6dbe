package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/diagrams/internal/common"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	userName := fields["username"].GetStringValue()
	password := fields["password"].GetStringValue()

	token, err := s.users.Login(ctx, userName, password)
	if err != nil {
		if !common.IsAuthError(err) {
			s.logger.Error(ctx, "login failed", "error", err)
		}
		return nil, statusFromError(err)
	}

	return structpb.NewStruct(map[string]any{
		"access_token": token.Token,
		"token_type":   token.TokenType,
		"expires_in":   float64(int64(time.Until(token.ExpiresAt).Round(time.Second).Seconds())),
	})
}

func (s *GRPCServer) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	identity, ok := identityFromContext(ctx)
	if !ok {
		return nil, statusFromError(common.ErrNotAuthenticated)
	}

	return structpb.NewStruct(map[string]any{
		"id":       float64(identity.UserID),
		"username": identity.UserName,
		"email":    identity.Email,
	})
}
