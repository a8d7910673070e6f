package grpc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"confesapp/backend/internal/auth"
)

// RequestTimeout bounds calls that arrive without a client deadline.
func RequestTimeout(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

type tokenVerifier interface {
	Verify(token string) (auth.Actor, error)
}

// Authenticate resolves the bearer token in the "authorization" metadata into
// an actor on the context. Calls without a token pass through anonymously;
// handlers decide whether that is acceptable.
func Authenticate(v tokenVerifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 {
			return handler(ctx, req)
		}

		token, err := auth.BearerToken(values[0])
		if errors.Is(err, auth.ErrMissingToken) {
			return handler(ctx, req)
		}
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid authorization metadata")
		}
		actor, err := v.Verify(token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
		}
		return handler(auth.WithActor(ctx, actor), req)
	}
}

func requireRole(ctx context.Context, roles ...auth.Role) (auth.Actor, error) {
	actor, ok := auth.ActorFrom(ctx)
	if !ok {
		return auth.Actor{}, status.Error(codes.Unauthenticated, "authentication required")
	}
	if !actor.Is(roles...) {
		return auth.Actor{}, status.Error(codes.PermissionDenied, "insufficient permissions")
	}
	return actor, nil
}
