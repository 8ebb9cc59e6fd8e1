package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/bizkeeper/internal/client/models"
	"github.com/dmitrijs2005/bizkeeper/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// AuthServiceName is the gRPC service exposed by the direct backend.
// Messages are google.protobuf.Struct documents with the REST field names.
const AuthServiceName = "bizkeeper.v1.AuthService"

func methodName(m string) string {
	return "/" + AuthServiceName + "/" + m
}

type GRPCClient struct {
	endpointURL string
	timeout     time.Duration
	conn        *grpc.ClientConn
	tokens      TokenSource
	now         func() time.Time
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if md, ok := metadata.FromOutgoingContext(ctx); ok && len(md.Get(common.AccessTokenHeaderName)) > 0 {
		return invoker(ctx, method, req, reply, cc, opts...)
	}
	if s.tokens != nil {
		if tok, err := s.tokens.AccessToken(ctx); err == nil && tok != "" {
			ctx = withAccessToken(ctx, tok)
		}
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewGRPCClient creates a lazily connecting client. Extra dial options are
// appended after the defaults.
func NewGRPCClient(endpointURL string, timeout time.Duration, tokens TokenSource, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, timeout: timeout, tokens: tokens, now: time.Now}

	dial := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dial...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	var resp statusResponse
	if err := s.invoke(ctx, "Ping", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var resp authResponse
	if err := s.invoke(ctx, "Login", credentialsRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	return resp.toAuth(s.now())
}

func (s *GRPCClient) Register(ctx context.Context, email, password, displayName string) (*AuthResponse, error) {
	var resp authResponse
	req := credentialsRequest{Email: email, Password: password, DisplayName: displayName}
	if err := s.invoke(ctx, "Register", req, &resp); err != nil {
		return nil, err
	}
	return resp.toAuth(s.now())
}

func (s *GRPCClient) GetProfile(ctx context.Context) (*models.UserInfo, error) {
	var u wireUser
	if err := s.invoke(ctx, "GetProfile", nil, &u); err != nil {
		return nil, err
	}
	info := u.info()
	return &info, nil
}

func (s *GRPCClient) UpdateProfile(ctx context.Context, patch models.ProfilePatch) (*models.UserInfo, error) {
	var u wireUser
	if err := s.invoke(ctx, "UpdateProfile", patch, &u); err != nil {
		return nil, err
	}
	info := u.info()
	return &info, nil
}

func (s *GRPCClient) ForgotPassword(ctx context.Context, email string) error {
	return s.invoke(ctx, "ForgotPassword", emailRequest{Email: email}, nil)
}

func (s *GRPCClient) VerifyTwoFactor(ctx context.Context, code string) error {
	return s.invoke(ctx, "VerifyTwoFactor", codeRequest{Code: code}, nil)
}

func (s *GRPCClient) Logout(ctx context.Context, accessToken string) error {
	if accessToken != "" {
		ctx = withAccessToken(ctx, accessToken)
	}
	return s.invoke(ctx, "Logout", nil, nil)
}

func (s *GRPCClient) invoke(ctx context.Context, method string, in, out any) error {
	req, err := toStruct(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	reply := &structpb.Struct{}
	if err := s.conn.Invoke(ctx, methodName(method), req, reply); err != nil {
		return s.mapError(err)
	}

	if out == nil {
		return nil
	}
	data, err := protojson.Marshal(reply)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServer, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrServer, err)
	}
	return nil
}

func toStruct(v any) (*structpb.Struct, error) {
	if v == nil {
		return &structpb.Struct{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	case codes.InvalidArgument, codes.AlreadyExists, codes.NotFound, codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", ErrRejected, st.Message())
	default:
		return fmt.Errorf("%w: rpc error: %v", ErrServer, err)
	}
}
