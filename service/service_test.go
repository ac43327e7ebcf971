package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/netip"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gogo/protobuf/proto"
	"github.com/libp2p/go-libp2p/core/peer"
	"golang.org/x/time/rate"

	"github.com/ppopth/gf128-factor/binding"
	"github.com/ppopth/gf128-factor/factor"
	"github.com/ppopth/gf128-factor/field"
	"github.com/ppopth/gf128-factor/host"
	"github.com/ppopth/gf128-factor/pb"
	"github.com/ppopth/gf128-factor/poly"
)

// (x + deadbeef)(x + c0ffee)(x + abcd)(x + 1234) in block encoding
var rootsCoefficients = []string{
	"7a9c3400001a584bb29b0a03b7971984",
	"1b81c000000000a9d95c170026d05960",
	"f43800000000000000c45e91cfdc121e",
	"000000000000000000000000de6df8f8",
	"80000000000000000000000000000000",
}

func rootsPolynomial(t *testing.T) poly.Polynomial {
	t.Helper()
	p, err := binding.DecodePolynomial(rootsCoefficients)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func newTestHost(t *testing.T) *host.Host {
	t.Helper()
	h, err := host.NewHost(host.WithAddrPort(netip.MustParseAddrPort("127.0.0.1:0")))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func newTestServer(t *testing.T, h *host.Host, opts ...ServerOption) *Server {
	t.Helper()
	var seed [32]byte
	f, err := factor.New(factor.WithRand(rand.NewChaCha8(seed)))
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewServer(h, append([]ServerOption{WithFactorizer(f)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sortedHex(roots []field.Element) []string {
	out := make([]string, len(roots))
	for i, r := range roots {
		out[i] = binding.EncodeElement(r)
	}
	sort.Strings(out)
	return out
}

var expectedRoots = []string{
	"00000000000000000000000000001234",
	"0000000000000000000000000000abcd",
	"00000000000000000000000000c0ffee",
	"000000000000000000000000deadbeef",
}

func TestProcess(t *testing.T) {
	s := newTestServer(t, newTestHost(t))
	p := rootsPolynomial(t)
	ctx := context.Background()

	req := &pb.FactorRequest{
		JobId:        proto.Uint64(7),
		Op:           pb.FactorRequest_ROOTS.Enum(),
		Coefficients: encodePolynomial(p),
	}
	resp := s.Process(ctx, req)
	if resp.GetError() != "" {
		t.Fatal(resp.GetError())
	}
	if resp.GetJobId() != 7 || len(resp.GetRoots()) != 4 {
		t.Fatalf("unexpected response %s", resp)
	}

	// Scaling the input hits the cached result
	req.Coefficients = encodePolynomial(p.Scale(field.FromUint64(5)))
	req.JobId = proto.Uint64(8)
	cached := s.Process(ctx, req)
	if cached.GetJobId() != 8 || len(cached.GetRoots()) != 4 || s.cache.Len() != 1 {
		t.Errorf("scaled input should be served from the cache")
	}

	req.Op = pb.FactorRequest_COUNT.Enum()
	if resp := s.Process(ctx, req); resp.GetCount() != 4 {
		t.Errorf("expected 4 irreducible factors, got %d", resp.GetCount())
	}
}

func TestProcessErrors(t *testing.T) {
	s := newTestServer(t, newTestHost(t))
	ctx := context.Background()

	tests := []struct {
		name   string
		req    *pb.FactorRequest
		substr string
	}{
		{
			"ZeroPolynomial",
			&pb.FactorRequest{Coefficients: [][]byte{make([]byte, 16)}},
			factor.ErrZeroPolynomial.Error(),
		},
		{
			"ShortCoefficient",
			&pb.FactorRequest{Coefficients: [][]byte{{1, 2, 3}}},
			binding.ErrInvalidCoefficient.Error(),
		},
		{
			"UnknownOp",
			&pb.FactorRequest{Op: pb.FactorRequest_Op(99).Enum(), Coefficients: encodePolynomial(poly.X())},
			ErrUnknownOp.Error(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.Process(ctx, tt.req)
			if !strings.Contains(resp.GetError(), tt.substr) {
				t.Errorf("expected error containing %q, got %q", tt.substr, resp.GetError())
			}
		})
	}
	if s.cache.Len() != 0 {
		t.Errorf("failures should not be cached")
	}
}

func TestProcessTimeout(t *testing.T) {
	s := newTestServer(t, newTestHost(t), WithMaxTimeout(time.Nanosecond), WithCacheSize(0))

	// Splitting eight linear factors needs several witness draws
	var seed [32]byte
	seed[0] = 1
	r := rand.NewChaCha8(seed)
	p := poly.One()
	for i := 0; i < 8; i++ {
		l, err := poly.Random(r, 1)
		if err != nil {
			t.Fatal(err)
		}
		p = p.Mul(l)
	}

	time.Sleep(time.Millisecond)
	resp := s.Process(context.Background(), &pb.FactorRequest{Coefficients: encodePolynomial(p)})
	if !strings.Contains(resp.GetError(), context.DeadlineExceeded.Error()) {
		t.Errorf("expected deadline error, got %q", resp.GetError())
	}
}

func TestProcessTimeoutEveryOp(t *testing.T) {
	s := newTestServer(t, newTestHost(t), WithMaxTimeout(time.Nanosecond), WithCacheSize(0))
	coeffs := encodePolynomial(rootsPolynomial(t))

	ops := []pb.FactorRequest_Op{
		pb.FactorRequest_SQUARE_FREE,
		pb.FactorRequest_DISTINCT_DEGREE,
		pb.FactorRequest_COUNT,
	}
	for _, op := range ops {
		t.Run(op.String(), func(t *testing.T) {
			resp := s.Process(context.Background(), &pb.FactorRequest{Op: op.Enum(), Coefficients: coeffs})
			if !strings.Contains(resp.GetError(), context.DeadlineExceeded.Error()) {
				t.Errorf("expected deadline error, got %q", resp.GetError())
			}
		})
	}
}

func TestMaxDegree(t *testing.T) {
	s := newTestServer(t, newTestHost(t), WithMaxDegree(3))
	ctx := context.Background()

	resp := s.Process(ctx, &pb.FactorRequest{
		Op:           pb.FactorRequest_COUNT.Enum(),
		Coefficients: encodePolynomial(rootsPolynomial(t)),
	})
	if !strings.Contains(resp.GetError(), ErrPolynomialTooLarge.Error()) {
		t.Errorf("expected %q, got %q", ErrPolynomialTooLarge, resp.GetError())
	}

	resp = s.Process(ctx, &pb.FactorRequest{
		Op:           pb.FactorRequest_COUNT.Enum(),
		Coefficients: encodePolynomial(poly.X().Mul(poly.X().Add(poly.One()))),
	})
	if resp.GetError() != "" || resp.GetCount() != 2 {
		t.Errorf("degree within the limit should be served, got %s", resp)
	}
}

func TestTimeoutMillis(t *testing.T) {
	tests := []struct {
		name     string
		timeout  time.Duration
		expected uint32
	}{
		{"Negative", -time.Second, 1},
		{"SubMillisecond", time.Microsecond, 1},
		{"Seconds", 1500 * time.Millisecond, 1500},
		{"MaxWire", time.Duration(math.MaxUint32) * time.Millisecond, math.MaxUint32},
		{"SixtyDays", 60 * 24 * time.Hour, math.MaxUint32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := timeoutMillis(tt.timeout); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestClientServer(t *testing.T) {
	serverHost := newTestHost(t)
	clientHost := newTestHost(t)
	newTestServer(t, serverHost)

	ctx := context.Background()
	pid, err := clientHost.Connect(ctx, serverHost.LocalAddr())
	if err != nil {
		t.Fatal(err)
	}
	client, err := NewClient(clientHost, pid, WithRequestTimeout(10*time.Second))
	if err != nil {
		t.Fatal(err)
	}

	p := rootsPolynomial(t)
	roots, err := client.Roots(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if got := sortedHex(roots); fmt.Sprint(got) != fmt.Sprint(expectedRoots) {
		t.Errorf("expected roots %v, got %v", expectedRoots, got)
	}

	factors, err := client.Factor(ctx, p.Square())
	if err != nil {
		t.Fatal(err)
	}
	if len(factors) != 8 {
		t.Errorf("square of a split quartic should have 8 factors, got %d", len(factors))
	}

	sf, err := client.SquareFree(ctx, p.Square())
	if err != nil {
		t.Fatal(err)
	}
	if !sf.Equal(p) {
		t.Errorf("square-free part should be the quartic")
	}

	groups, err := client.DistinctDegree(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || groups[0].Degree != 1 || !groups[0].Poly.Equal(p) {
		t.Errorf("split quartic should form a single degree-1 group")
	}

	n, err := client.CountIrreducible(ctx, p)
	if err != nil || n != 4 {
		t.Errorf("expected 4 irreducible factors, got %d (%v)", n, err)
	}

	if _, err := client.Factor(ctx, poly.Zero()); !errors.Is(err, ErrRequestFailed) {
		t.Errorf("expected ErrRequestFailed, got %v", err)
	}
}

func TestReplayedJob(t *testing.T) {
	serverHost := newTestHost(t)
	clientHost := newTestHost(t)
	newTestServer(t, serverHost)

	ctx := context.Background()
	pid, err := clientHost.Connect(ctx, serverHost.LocalAddr())
	if err != nil {
		t.Fatal(err)
	}

	data, err := proto.Marshal(&pb.FactorRequest{
		JobId:        proto.Uint64(1),
		Op:           pb.FactorRequest_ROOTS.Enum(),
		Coefficients: encodePolynomial(rootsPolynomial(t)),
	})
	if err != nil {
		t.Fatal(err)
	}

	for i, expectErr := range []bool{false, true} {
		reply, err := clientHost.Request(ctx, pid, data)
		if err != nil {
			t.Fatal(err)
		}
		var resp pb.FactorResponse
		if err := proto.Unmarshal(reply, &resp); err != nil {
			t.Fatal(err)
		}
		if got := resp.GetError() == ErrReplayedJob.Error(); got != expectErr {
			t.Errorf("attempt %d: replay rejection %v, expected %v", i, got, expectErr)
		}
	}

	// Garbage is rejected at the transport level
	if _, err := clientHost.Request(ctx, pid, []byte{0xff, 0xff, 0xff}); err == nil {
		t.Errorf("malformed request should fail")
	}
}

func TestServerOptions(t *testing.T) {
	h := newTestHost(t)
	tests := []struct {
		name string
		opt  ServerOption
	}{
		{"NilFactorizer", WithFactorizer(nil)},
		{"ZeroTimeout", WithMaxTimeout(0)},
		{"NegativeCache", WithCacheSize(-1)},
		{"ZeroReplayWindow", WithReplayWindow(0)},
		{"ZeroRate", WithRateLimit(0, 1)},
		{"ZeroBurst", WithRateLimit(1, 0)},
		{"ZeroMaxDegree", WithMaxDegree(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewServer(h, tt.opt); err == nil {
				t.Errorf("option should be rejected")
			}
		})
	}
	if _, err := NewClient(h, h.ID(), WithRequestTimeout(0)); err == nil {
		t.Errorf("zero request timeout should be rejected")
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, newTestHost(t), WithRateLimit(rate.Every(time.Hour), 2))
	ctx := context.Background()

	data, err := proto.Marshal(&pb.FactorRequest{
		Op:           pb.FactorRequest_COUNT.Enum(),
		Coefficients: encodePolynomial(rootsPolynomial(t)),
	})
	if err != nil {
		t.Fatal(err)
	}

	for i, expectLimited := range []bool{false, false, true} {
		reply, err := s.handleRequest(ctx, peer.ID("alice"), data)
		if err != nil {
			t.Fatal(err)
		}
		var resp pb.FactorResponse
		if err := proto.Unmarshal(reply, &resp); err != nil {
			t.Fatal(err)
		}
		if got := resp.GetError() == ErrRateLimited.Error(); got != expectLimited {
			t.Errorf("request %d: rate limited %v, expected %v", i, got, expectLimited)
		}
	}

	// Each peer has its own budget
	reply, err := s.handleRequest(ctx, peer.ID("bob"), data)
	if err != nil {
		t.Fatal(err)
	}
	var resp pb.FactorResponse
	if err := proto.Unmarshal(reply, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.GetError() != "" || resp.GetCount() != 4 {
		t.Errorf("another peer should not be limited, got %s", &resp)
	}
}

func TestDial(t *testing.T) {
	serverHost := newTestHost(t)
	newTestServer(t, serverHost)
	clientHost := newTestHost(t)

	ctx := context.Background()
	client, err := Dial(ctx, clientHost, serverHost.LocalAddr(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if n, err := client.CountIrreducible(ctx, rootsPolynomial(t)); err != nil || n != 4 {
		t.Errorf("expected 4 irreducible factors, got %d (%v)", n, err)
	}

	// A second connection to the same server is refused without retrying
	start := time.Now()
	if _, err := Dial(ctx, clientHost, serverHost.LocalAddr(), 5); !errors.Is(err, host.ErrAlreadyConnected) {
		t.Errorf("expected ErrAlreadyConnected, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("a permanent failure should not be retried")
	}

	if _, err := Dial(ctx, clientHost, serverHost.LocalAddr(), -1); err == nil {
		t.Errorf("negative retry count should be rejected")
	}
}

func TestDialUnreachable(t *testing.T) {
	gone := newTestHost(t)
	addr := gone.LocalAddr()
	gone.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if _, err := Dial(ctx, newTestHost(t), addr, 2); err == nil {
		t.Errorf("dialing a closed host should fail")
	}
}
