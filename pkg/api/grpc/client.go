package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls the Calculator service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an existing connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Evaluate evaluates text and returns the recorded evaluation.
func (c *Client) Evaluate(ctx context.Context, text string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Evaluate", wrapperspb.String(text), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Parse returns the formatted AST of text.
func (c *Client) Parse(ctx context.Context, text string, opts ...grpc.CallOption) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Parse", wrapperspb.String(text), out, opts...); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// Tokenize returns the tokens of text.
func (c *Client) Tokenize(ctx context.Context, text string, opts ...grpc.CallOption) ([]*structpb.Struct, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Tokenize", wrapperspb.String(text), out, opts...); err != nil {
		return nil, err
	}
	tokens := make([]*structpb.Struct, 0, len(out.GetValues()))
	for _, v := range out.GetValues() {
		tokens = append(tokens, v.GetStructValue())
	}
	return tokens, nil
}

// GetEvaluation fetches a recorded evaluation.
func (c *Client) GetEvaluation(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/GetEvaluation", wrapperspb.String(id), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
