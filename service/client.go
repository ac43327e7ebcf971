package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gogo/protobuf/proto"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/ppopth/gf128-factor/factor"
	"github.com/ppopth/gf128-factor/field"
	"github.com/ppopth/gf128-factor/host"
	"github.com/ppopth/gf128-factor/pb"
	"github.com/ppopth/gf128-factor/poly"
)

// ErrRequestFailed wraps the error message reported by the server
var ErrRequestFailed = errors.New("remote factoring failed")

// ClientOption configures a Client during construction
type ClientOption func(*Client) error

// WithRequestTimeout sets the timeout sent with requests whose context has no deadline
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("invalid request timeout %s", d)
		}
		c.timeout = d
		return nil
	}
}

// Client sends factoring requests to one server peer
type Client struct {
	host    *host.Host
	server  peer.ID
	timeout time.Duration
	nextJob atomic.Uint64
}

// NewClient creates a Client for a server the host is already connected to
func NewClient(h *host.Host, server peer.ID, opts ...ClientOption) (*Client, error) {
	c := &Client{
		host:    h,
		server:  server,
		timeout: DefaultMaxTimeout,
	}
	for _, opt := range opts {
		err := opt(c)
		if err != nil {
			return nil, err
		}
	}

	// Random first job ID so a restarted client is not mistaken for a replay
	var seed [8]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, err
	}
	c.nextJob.Store(binary.BigEndian.Uint64(seed[:]))
	return c, nil
}

// Dial connects h to the server at addr and returns a Client for it
// Failed connection attempts are retried with exponential backoff up to retries times.
func Dial(ctx context.Context, h *host.Host, addr net.Addr, retries int, opts ...ClientOption) (*Client, error) {
	if retries < 0 {
		return nil, fmt.Errorf("invalid retry count %d", retries)
	}

	var server peer.ID
	connect := func() error {
		pid, err := h.Connect(ctx, addr)
		if errors.Is(err, host.ErrAlreadyConnected) {
			return backoff.Permanent(err)
		}
		server = pid
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries)), ctx)
	err := backoff.RetryNotify(connect, b, func(err error, d time.Duration) {
		log.Infof("connecting to %s failed, retrying in %s: %v", addr, d.Round(time.Millisecond), err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return NewClient(h, server, opts...)
}

// Factor returns the irreducible factors of p with multiplicity
func (c *Client) Factor(ctx context.Context, p poly.Polynomial) ([]poly.Polynomial, error) {
	resp, err := c.do(ctx, pb.FactorRequest_FACTOR, p)
	if err != nil {
		return nil, err
	}
	return decodePolynomials(resp.GetFactors())
}

// Roots returns the distinct roots of p
func (c *Client) Roots(ctx context.Context, p poly.Polynomial) ([]field.Element, error) {
	resp, err := c.do(ctx, pb.FactorRequest_ROOTS, p)
	if err != nil {
		return nil, err
	}
	roots := make([]field.Element, len(resp.GetRoots()))
	for i, b := range resp.GetRoots() {
		roots[i], err = decodeElement(b)
		if err != nil {
			return nil, fmt.Errorf("root %d: %w", i, err)
		}
	}
	return roots, nil
}

// SquareFree returns the monic square-free part of p
func (c *Client) SquareFree(ctx context.Context, p poly.Polynomial) (poly.Polynomial, error) {
	resp, err := c.do(ctx, pb.FactorRequest_SQUARE_FREE, p)
	if err != nil {
		return poly.Polynomial{}, err
	}
	factors, err := decodePolynomials(resp.GetFactors())
	if err != nil {
		return poly.Polynomial{}, err
	}
	if len(factors) != 1 {
		return poly.Polynomial{}, fmt.Errorf("expected one polynomial, got %d", len(factors))
	}
	return factors[0], nil
}

// DistinctDegree returns the distinct-degree groups of the square-free part of p
func (c *Client) DistinctDegree(ctx context.Context, p poly.Polynomial) ([]factor.Group, error) {
	resp, err := c.do(ctx, pb.FactorRequest_DISTINCT_DEGREE, p)
	if err != nil {
		return nil, err
	}
	polys, err := decodePolynomials(resp.GetFactors())
	if err != nil {
		return nil, err
	}
	degrees := resp.GetDegrees()
	if len(degrees) != len(polys) {
		return nil, fmt.Errorf("got %d groups but %d degrees", len(polys), len(degrees))
	}
	groups := make([]factor.Group, len(polys))
	for i := range polys {
		groups[i] = factor.Group{Poly: polys[i], Degree: int(degrees[i])}
	}
	return groups, nil
}

// CountIrreducible returns the number of distinct irreducible factors of p
func (c *Client) CountIrreducible(ctx context.Context, p poly.Polynomial) (int, error) {
	resp, err := c.do(ctx, pb.FactorRequest_COUNT, p)
	if err != nil {
		return 0, err
	}
	return int(resp.GetCount()), nil
}

func (c *Client) do(ctx context.Context, op pb.FactorRequest_Op, p poly.Polynomial) (*pb.FactorResponse, error) {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, context.DeadlineExceeded
		}
	}

	jobID := c.nextJob.Add(1)
	req := &pb.FactorRequest{
		JobId:        proto.Uint64(jobID),
		Op:           op.Enum(),
		Coefficients: encodePolynomial(p),
		TimeoutMs:    proto.Uint32(timeoutMillis(timeout)),
	}
	data, err := proto.Marshal(req)
	if err != nil {
		return nil, err
	}

	reply, err := c.host.Request(ctx, c.server, data)
	if err != nil {
		return nil, err
	}
	resp := &pb.FactorResponse{}
	if err := proto.Unmarshal(reply, resp); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	if resp.GetJobId() != jobID {
		return nil, fmt.Errorf("response for job %d, expected %d", resp.GetJobId(), jobID)
	}
	if msg := resp.GetError(); msg != "" {
		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, msg)
	}
	return resp, nil
}

// timeoutMillis converts d to the wire's millisecond field, saturating at both ends
func timeoutMillis(d time.Duration) uint32 {
	return uint32(min(max(d.Milliseconds(), 1), math.MaxUint32))
}
