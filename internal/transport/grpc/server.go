package grpcx

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bcrosbie/namecache/internal/covenant"
	"github.com/bcrosbie/namecache/internal/domain"
	"github.com/bcrosbie/namecache/internal/rpccontract"
	"github.com/bcrosbie/namecache/internal/service"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

type NameCacheRPCServer interface {
	GetHealth(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	LookupNamehash(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResolveCovenants(context.Context, *structpb.ListValue) (*structpb.ListValue, error)
	ResolveCovenant(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LookupAddress(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type NameCacheHandler struct {
	cache *service.CacheService
}

func NewNameCacheHandler(cache *service.CacheService) *NameCacheHandler {
	return &NameCacheHandler{cache: cache}
}

func RegisterNameCacheServer(server *grpc.Server, handler NameCacheRPCServer) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: rpccontract.ServiceName,
		HandlerType: (*NameCacheRPCServer)(nil),
		Methods: []grpc.MethodDesc{
			unaryMethod(rpccontract.MethodGetHealth, newEmpty, NameCacheRPCServer.GetHealth),
			unaryMethod(rpccontract.MethodGetStatus, newEmpty, NameCacheRPCServer.GetStatus),
			unaryMethod(rpccontract.MethodLookupNamehash, newStruct, NameCacheRPCServer.LookupNamehash),
			unaryMethod(rpccontract.MethodResolveCovenants, newList, NameCacheRPCServer.ResolveCovenants),
			unaryMethod(rpccontract.MethodResolveCovenant, newStruct, NameCacheRPCServer.ResolveCovenant),
			unaryMethod(rpccontract.MethodLookupAddress, newStruct, NameCacheRPCServer.LookupAddress),
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "proto/namecache/v1/namecache.proto",
	}, handler)
}

type lookupNamehashRequest struct {
	Namehash string `json:"namehash"`
}

type lookupNamehashResponse struct {
	Namehash string `json:"namehash"`
	Name     string `json:"name"`
	Source   string `json:"source"`
	Found    bool   `json:"found"`
}

type lookupAddressRequest struct {
	Domain string `json:"domain"`
}

func (h *NameCacheHandler) GetHealth(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(h.cache.Health())
}

func (h *NameCacheHandler) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	status, err := h.cache.Status(ctx)
	if err != nil {
		return nil, err
	}
	return toStruct(status)
}

func (h *NameCacheHandler) LookupNamehash(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	decoded, err := decodeStruct[lookupNamehashRequest](request)
	if err != nil {
		return nil, err
	}
	result, err := h.cache.ResolveOne(ctx, decoded.Namehash)
	if err != nil {
		return nil, err
	}
	return toStruct(lookupNamehashResponse{
		Namehash: result.Namehash,
		Name:     result.Name,
		Source:   string(result.Source),
		Found:    result.Found(),
	})
}

func (h *NameCacheHandler) ResolveCovenants(ctx context.Context, request *structpb.ListValue) (*structpb.ListValue, error) {
	raw, err := json.Marshal(request.AsSlice())
	if err != nil {
		return nil, domain.InvalidArgument("covenant list could not be encoded")
	}
	records, err := covenant.DecodeList(raw)
	if err != nil {
		return nil, err
	}
	results, err := h.cache.ResolveBatch(ctx, records)
	if err != nil {
		return nil, err
	}
	return toList(results)
}

func (h *NameCacheHandler) ResolveCovenant(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	raw, err := json.Marshal(request.AsMap())
	if err != nil {
		return nil, domain.InvalidArgument("covenant could not be encoded")
	}
	result, err := h.cache.ResolveCovenant(ctx, covenant.DecodeRecord(raw))
	if err != nil {
		return nil, err
	}
	return toStruct(result)
}

func (h *NameCacheHandler) LookupAddress(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	decoded, err := decodeStruct[lookupAddressRequest](request)
	if err != nil {
		return nil, err
	}
	result, err := h.cache.ResolveAddress(ctx, decoded.Domain)
	if err != nil {
		return nil, err
	}
	return toStruct(result)
}

func toStruct(value any) (*structpb.Struct, error) {
	serialized, err := json.Marshal(value)
	if err != nil {
		return nil, domain.Internal("failed to encode response", err)
	}

	decoded := map[string]any{}
	if err := json.Unmarshal(serialized, &decoded); err != nil {
		return nil, domain.Internal("failed to shape response object", err)
	}
	result, err := structpb.NewStruct(decoded)
	if err != nil {
		return nil, domain.Internal("failed to convert response to protobuf struct", err)
	}
	return result, nil
}

func toList(value any) (*structpb.ListValue, error) {
	serialized, err := json.Marshal(value)
	if err != nil {
		return nil, domain.Internal("failed to encode response list", err)
	}

	decoded := []any{}
	if err := json.Unmarshal(serialized, &decoded); err != nil {
		return nil, domain.Internal("failed to shape response list", err)
	}
	result, err := structpb.NewList(decoded)
	if err != nil {
		return nil, domain.Internal("failed to convert response to protobuf list", err)
	}
	return result, nil
}

func decodeStruct[T any](input *structpb.Struct) (T, error) {
	var out T
	serialized, err := json.Marshal(input.AsMap())
	if err != nil {
		return out, domain.InvalidArgument("request payload could not be encoded")
	}
	if err := json.Unmarshal(serialized, &out); err != nil {
		return out, domain.InvalidArgument("request payload shape is invalid")
	}
	return out, nil
}

func newEmpty() *emptypb.Empty { return new(emptypb.Empty) }
func newStruct() *structpb.Struct { return new(structpb.Struct) }
func newList() *structpb.ListValue { return new(structpb.ListValue) }

// unaryMethod builds the MethodDesc for one unary RPC, running the call
// through the server's interceptor chain when one is installed.
func unaryMethod[Req, Resp any](
	fullMethod string,
	newRequest func() Req,
	call func(NameCacheRPCServer, context.Context, Req) (Resp, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: strings.TrimPrefix(fullMethod, "/"+rpccontract.ServiceName+"/"),
		Handler: func(
			srv any,
			ctx context.Context,
			decoder func(any) error,
			interceptor grpc.UnaryServerInterceptor,
		) (any, error) {
			request := newRequest()
			if err := decoder(request); err != nil {
				return nil, err
			}
			server := srv.(NameCacheRPCServer)
			if interceptor == nil {
				return call(server, ctx, request)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(Req))
			}
			return interceptor(ctx, request, info, handler)
		},
	}
}
