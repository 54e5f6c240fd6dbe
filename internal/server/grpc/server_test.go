package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/diagrams/internal/common"
	"github.com/dmitrijs2005/diagrams/internal/logging"
	"github.com/dmitrijs2005/diagrams/internal/server/auth"
	"github.com/dmitrijs2005/diagrams/internal/server/models"
	"github.com/dmitrijs2005/diagrams/internal/server/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

var secret = []byte("grpc-secret")

type fakeUsers struct {
	issuer   *auth.Issuer
	verifier *auth.Verifier
	failWith error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		issuer:   auth.NewIssuer(secret, "diagrams", 30*time.Minute),
		verifier: auth.NewVerifier(secret, "diagrams"),
	}
}

func (f *fakeUsers) Login(_ context.Context, userName, password string) (*models.AccessToken, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if userName != "alice" || password != "correct" {
		return nil, common.ErrInvalidCredentials
	}
	return f.issuer.Issue(1)
}

func (f *fakeUsers) Authenticate(_ context.Context, token string) (*models.SessionIdentity, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	claims, err := f.verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.UserID != 1 {
		return nil, common.ErrSubjectNotFound
	}
	return &models.SessionIdentity{UserID: 1, UserName: "alice", Email: "alice@example.com", TokenID: claims.TokenID}, nil
}

func startBufServer(t *testing.T, users UserService) *grpc.ClientConn {
	t.Helper()
	return startLimitedBufServer(t, users, nil)
}

func startLimitedBufServer(t *testing.T, users UserService, limiter *ratelimit.Limiter) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	s := NewGRPCServer("bufnet", logging.Nop{}, users, limiter)
	srv := s.newServer()
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func withBearer(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

func TestLoginAndWhoAmI(t *testing.T) {
	conn := startBufServer(t, newFakeUsers())
	client := NewSessionClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	in, err := structpb.NewStruct(map[string]any{"username": "alice", "password": "correct"})
	require.NoError(t, err)
	out, err := client.Login(ctx, in)
	require.NoError(t, err)
	token := out.GetFields()["access_token"].GetStringValue()
	require.NotEmpty(t, token)
	assert.Equal(t, "bearer", out.GetFields()["token_type"].GetStringValue())

	me, err := client.WhoAmI(withBearer(ctx, token))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": float64(1), "username": "alice", "email": "alice@example.com"}, me.AsMap())
}

func TestLogin_InvalidCredentials(t *testing.T) {
	conn := startBufServer(t, newFakeUsers())
	client := NewSessionClient(conn)

	in, err := structpb.NewStruct(map[string]any{"username": "alice", "password": "wrong"})
	require.NoError(t, err)
	_, err = client.Login(context.Background(), in)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, "Invalid credentials", status.Convert(err).Message())
}

func TestLogin_RateLimitedPerPeer(t *testing.T) {
	conn := startLimitedBufServer(t, newFakeUsers(), ratelimit.FromConfig(1, 5))
	client := NewSessionClient(conn)
	ctx := context.Background()

	wrong, err := structpb.NewStruct(map[string]any{"username": "alice", "password": "wrong"})
	require.NoError(t, err)

	limited := 0
	for i := 0; i < 50; i++ {
		_, err := client.Login(ctx, wrong)
		switch status.Code(err) {
		case codes.ResourceExhausted:
			limited++
			assert.Equal(t, "Too many requests", status.Convert(err).Message())
		case codes.Unauthenticated:
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.GreaterOrEqual(t, limited, 40)

	right, err := structpb.NewStruct(map[string]any{"username": "alice", "password": "correct"})
	require.NoError(t, err)
	_, err = client.Login(ctx, right)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestLogin_LimitDoesNotApplyToWhoAmI(t *testing.T) {
	users := newFakeUsers()
	conn := startLimitedBufServer(t, users, ratelimit.New(rate.Limit(0.001), 1))
	client := NewSessionClient(conn)
	ctx := context.Background()

	in, err := structpb.NewStruct(map[string]any{"username": "alice", "password": "correct"})
	require.NoError(t, err)
	out, err := client.Login(ctx, in)
	require.NoError(t, err)
	token := out.GetFields()["access_token"].GetStringValue()

	_, err = client.Login(ctx, in)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	for i := 0; i < 5; i++ {
		_, err := client.WhoAmI(withBearer(ctx, token))
		require.NoError(t, err)
	}
}

func TestLogin_SharesBudgetWithOtherTransports(t *testing.T) {
	limiter := ratelimit.New(rate.Limit(0.001), 2)
	conn := startLimitedBufServer(t, newFakeUsers(), limiter)

	// bufconn peers report the address "bufconn"
	require.True(t, limiter.Allow("bufconn"))

	in, err := structpb.NewStruct(map[string]any{"username": "alice", "password": "wrong"})
	require.NoError(t, err)
	_, err = NewSessionClient(conn).Login(context.Background(), in)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = NewSessionClient(conn).Login(context.Background(), in)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestPeerKey(t *testing.T) {
	assert.Equal(t, "unknown", peerKey(context.Background()))

	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("10.1.2.3"), Port: 5555}})
	assert.Equal(t, "10.1.2.3", peerKey(ctx))
}

func TestWhoAmI_Rejections(t *testing.T) {
	conn := startBufServer(t, newFakeUsers())
	client := NewSessionClient(conn)
	ctx := context.Background()

	_, err := client.WhoAmI(ctx)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, "Not authenticated", status.Convert(err).Message())

	_, err = client.WhoAmI(metadata.AppendToOutgoingContext(ctx, "authorization", "Basic abc"))
	assert.Equal(t, "Not authenticated", status.Convert(err).Message())

	_, err = client.WhoAmI(withBearer(ctx, "not-a-token"))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, "Could not validate credentials", status.Convert(err).Message())

	expired, err := auth.NewIssuer(secret, "diagrams", -time.Minute).Issue(1)
	require.NoError(t, err)
	_, err = client.WhoAmI(withBearer(ctx, expired.Token))
	assert.Equal(t, "Could not validate credentials", status.Convert(err).Message())

	ghost, err := auth.NewIssuer(secret, "diagrams", time.Minute).Issue(7)
	require.NoError(t, err)
	_, err = client.WhoAmI(withBearer(ctx, ghost.Token))
	assert.Equal(t, "Could not validate credentials", status.Convert(err).Message())
}

func TestWhoAmI_InternalError(t *testing.T) {
	users := newFakeUsers()
	users.failWith = assert.AnError
	conn := startBufServer(t, users)

	_, err := NewSessionClient(conn).WhoAmI(withBearer(context.Background(), "x"))
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.NotContains(t, status.Convert(err).Message(), assert.AnError.Error())
}

func TestHealth(t *testing.T) {
	conn := startBufServer(t, newFakeUsers())
	hc := healthpb.NewHealthClient(conn)

	resp, err := hc.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	resp, err = hc.Check(context.Background(), &healthpb.HealthCheckRequest{Service: SessionServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestWhoAmI_DirectCallWithoutIdentity(t *testing.T) {
	s := NewGRPCServer("", logging.Nop{}, newFakeUsers(), nil)
	_, err := s.WhoAmI(context.Background(), nil)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", logging.Nop{}, newFakeUsers(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.Nop{}, newFakeUsers(), nil)
	if err := srv.Run(context.Background()); err == nil {
		t.Fatal("expected error for invalid address")
	}
}
