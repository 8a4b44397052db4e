package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bcrosbie/namecache/internal/rpccontract"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

var validFormats = []string{"text", "json"}

type rootOptions struct {
	Addr    string
	Token   string
	Format  string
	Timeout time.Duration

	// dial is replaced in tests.
	dial func(addr string) (grpc.ClientConnInterface, func() error, error)
}

func newRootCommand(dial func(addr string) (grpc.ClientConnInterface, func() error, error)) *cobra.Command {
	if dial == nil {
		dial = dialGRPC
	}
	opts := &rootOptions{dial: dial}

	cmd := &cobra.Command{
		Use:           "namecache-cli",
		Short:         "Query a namecache server over gRPC",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			for _, format := range validFormats {
				if format == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Addr, "addr", "127.0.0.1:50051", "gRPC address")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", os.Getenv("AUTH_TOKEN"), "optional auth token")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 15*time.Second, "request timeout")

	cmd.AddCommand(
		newHealthCommand(opts),
		newStatusCommand(opts),
		newLookupCommand(opts),
		newCovenantsCommand(opts),
		newAddressCommand(opts),
	)
	return cmd
}

func newHealthCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server liveness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			response, err := callStruct(cmd.Context(), opts, rpccontract.MethodGetHealth, &emptypb.Empty{})
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.Format, response, renderFields)
		},
	}
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show service status and cache size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			response, err := callStruct(cmd.Context(), opts, rpccontract.MethodGetStatus, &emptypb.Empty{})
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.Format, response, renderFields)
		},
	}
}

func newLookupCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <namehash>",
		Short: "Resolve one namehash to its name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			request, err := structpb.NewStruct(map[string]any{"namehash": args[0]})
			if err != nil {
				return fmt.Errorf("request build error: %w", err)
			}
			response, err := callStruct(cmd.Context(), opts, rpccontract.MethodLookupNamehash, request)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.Format, response, renderFields)
		},
	}
}

func newCovenantsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "covenants [file]",
		Short: "Resolve a JSON array of covenants (reads stdin when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer file.Close()
				input = file
			}
			request, err := readCovenantList(input)
			if err != nil {
				return err
			}
			response, err := callList(cmd.Context(), opts, rpccontract.MethodResolveCovenants, request)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.Format, response, renderDisplays)
		},
	}
}

func newAddressCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "address <domain>",
		Short: "Look up the HNS wallet address published by a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			request, err := structpb.NewStruct(map[string]any{"domain": args[0]})
			if err != nil {
				return fmt.Errorf("request build error: %w", err)
			}
			response, err := callStruct(cmd.Context(), opts, rpccontract.MethodLookupAddress, request)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.Format, response, renderFields)
		},
	}
}

func readCovenantList(input io.Reader) (*structpb.ListValue, error) {
	var elements []any
	if err := json.NewDecoder(input).Decode(&elements); err != nil {
		return nil, fmt.Errorf("covenants must be a JSON array: %w", err)
	}
	list, err := structpb.NewList(elements)
	if err != nil {
		return nil, fmt.Errorf("request build error: %w", err)
	}
	return list, nil
}

func dialGRPC(addr string) (grpc.ClientConnInterface, func() error, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("dial error: %w", err)
	}
	return conn, conn.Close, nil
}

func invoke(ctx context.Context, opts *rootOptions, method string, request, response any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	conn, closeConn, err := opts.dial(opts.Addr)
	if err != nil {
		return err
	}
	defer func() { _ = closeConn() }()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if opts.Token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, rpccontract.TokenHeader, opts.Token)
	}
	if err := conn.Invoke(ctx, method, request, response); err != nil {
		return fmt.Errorf("rpc error %s: %w", method, err)
	}
	return nil
}

func callStruct(ctx context.Context, opts *rootOptions, method string, request any) (map[string]any, error) {
	response := &structpb.Struct{}
	if err := invoke(ctx, opts, method, request, response); err != nil {
		return nil, err
	}
	return response.AsMap(), nil
}

func callList(ctx context.Context, opts *rootOptions, method string, request any) ([]any, error) {
	response := &structpb.ListValue{}
	if err := invoke(ctx, opts, method, request, response); err != nil {
		return nil, err
	}
	return response.AsSlice(), nil
}
