package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client is a thin wrapper over the Streams gRPC API for tooling that
// submits event identifiers to a running node.
type Client struct {
	conn    *grpc.ClientConn
	streams StreamsClient
}

// Dial connects to the validation endpoint of a node at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	conn, err := grpc.DialContext(ctx, addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to dial validation endpoint %s: %v", addr, err)
	}
	return &Client{conn: conn, streams: NewStreamsClient(conn)}, nil
}

// ValidateEvent submits a raw event identifier and returns the node's
// witnessing status. The identifier is sent as-is; the server enforces
// the 32-byte shape.
func (c *Client) ValidateEvent(ctx context.Context, id []byte) (string, error) {
	reply, err := c.streams.ValidateEvent(ctx, wrapperspb.Bytes(id))
	if err != nil {
		return "", err
	}
	return reply.GetValue(), nil
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
