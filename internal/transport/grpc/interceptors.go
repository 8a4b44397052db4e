package grpcx

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/bcrosbie/namecache/internal/domain"
	"github.com/bcrosbie/namecache/internal/rpccontract"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func RecoveryUnaryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (response any, err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				logger.Error("panic recovered",
					zap.String("method", info.FullMethod),
					zap.Any("panic", recovered),
					zap.ByteString("stack", debug.Stack()))
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

func AuthUnaryInterceptor(token string) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if token == "" {
			return handler(ctx, req)
		}
		if _, public := rpccontract.PublicMethods[info.FullMethod]; public {
			return handler(ctx, req)
		}

		if extractToken(ctx) != token {
			return nil, status.Error(codes.Unauthenticated, "invalid authentication token")
		}
		return handler(ctx, req)
	}
}

func LoggingUnaryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		requestID := firstMetadata(ctx, "x-request-id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		started := time.Now()
		response, err := handler(ctx, req)
		logger.Info("grpc request",
			zap.String("request_id", requestID),
			zap.String("method", info.FullMethod),
			zap.Stringer("code", status.Code(err)),
			zap.Duration("duration", time.Since(started)))
		return response, err
	}
}

func ErrorUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		response, err := handler(ctx, req)
		if err == nil {
			return response, nil
		}

		if status.Code(err) != codes.Unknown {
			return nil, err
		}

		return nil, mapError(err)
	}
}

func mapError(err error) error {
	appError, ok := domain.AsAppError(err)
	if !ok {
		return status.Error(codes.Internal, "internal server error")
	}
	switch appError.Code {
	case domain.CodeInvalidArgument:
		return status.Error(codes.InvalidArgument, appError.Message)
	case domain.CodeNotFound:
		return status.Error(codes.NotFound, appError.Message)
	case domain.CodeUnauthenticated:
		return status.Error(codes.Unauthenticated, appError.Message)
	case domain.CodeStoreUnavailable:
		return status.Error(codes.Unavailable, "name store unavailable")
	case domain.CodeResolutionFailed, domain.CodeRemoteUnavailable:
		return status.Error(codes.Unavailable, appError.Message)
	default:
		return status.Error(codes.Internal, appError.Message)
	}
}

func extractToken(ctx context.Context) string {
	token := strings.TrimSpace(firstMetadata(ctx, rpccontract.TokenHeader))
	if token != "" {
		return token
	}

	authHeader := strings.TrimSpace(firstMetadata(ctx, "authorization"))
	const bearer = "Bearer "
	if strings.HasPrefix(authHeader, bearer) {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, bearer))
	}
	return ""
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
