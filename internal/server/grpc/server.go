// Package grpc exposes session operations over gRPC next to the HTTP API.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/diagrams/internal/logging"
	"github.com/dmitrijs2005/diagrams/internal/server/models"
	"github.com/dmitrijs2005/diagrams/internal/server/ratelimit"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// UserService is the part of services.UserService used here.
type UserService interface {
	Login(ctx context.Context, userName, password string) (*models.AccessToken, error)
	Authenticate(ctx context.Context, token string) (*models.SessionIdentity, error)
}

type GRPCServer struct {
	address string
	users   UserService
	limiter *ratelimit.Limiter
	logger  logging.Logger
	health  *health.Server
}

// NewGRPCServer serves SessionService on a. Login calls are counted against
// limiter per peer host; a nil limiter means no limit.
func NewGRPCServer(a string, l logging.Logger, us UserService, limiter *ratelimit.Limiter) *GRPCServer {
	if limiter == nil {
		limiter = ratelimit.FromConfig(0, 0)
	}
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		users:   us,
		limiter: limiter,
		health:  health.NewServer(),
	}
}

// newServer builds the grpc.Server with every service registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loginRateInterceptor, s.accessTokenInterceptor))

	srv.RegisterService(&sessionServiceDesc, s)
	healthpb.RegisterHealthServer(srv, s.health)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(SessionServiceName, healthpb.HealthCheckResponse_SERVING)

	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
