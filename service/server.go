package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gogo/protobuf/proto"
	lru "github.com/hashicorp/golang-lru/v2"
	logging "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p/core/peer"
	"golang.org/x/time/rate"

	"github.com/ppopth/gf128-factor/binding"
	"github.com/ppopth/gf128-factor/factor"
	"github.com/ppopth/gf128-factor/field"
	"github.com/ppopth/gf128-factor/host"
	"github.com/ppopth/gf128-factor/pb"
	"github.com/ppopth/gf128-factor/poly"
)

var log = logging.Logger("service")

var (
	// ErrReplayedJob is reported when a peer reuses a job ID inside the replay window
	ErrReplayedJob = errors.New("job already submitted")
	// ErrUnknownOp is reported for operations the server does not implement
	ErrUnknownOp = errors.New("unknown operation")
	// ErrRateLimited is reported when a peer sends requests faster than allowed
	ErrRateLimited = errors.New("request rate exceeded")
	// ErrPolynomialTooLarge is reported for inputs above the server's degree limit
	ErrPolynomialTooLarge = errors.New("polynomial degree exceeds limit")
)

const (
	DefaultMaxTimeout   = 30 * time.Second
	DefaultCacheSize    = 1024
	DefaultReplayWindow = 2 * time.Minute
	DefaultMaxDegree    = 256

	// maxTrackedPeers bounds the number of per-peer rate limiters kept
	maxTrackedPeers = 4096
)

// ServerOption configures a Server during construction
type ServerOption func(*Server) error

// WithFactorizer sets the Factorizer used for requests
func WithFactorizer(f *factor.Factorizer) ServerOption {
	return func(s *Server) error {
		if f == nil {
			return fmt.Errorf("factorizer is required")
		}
		s.factorizer = f
		return nil
	}
}

// WithMaxTimeout caps the time spent on one request
func WithMaxTimeout(d time.Duration) ServerOption {
	return func(s *Server) error {
		if d <= 0 {
			return fmt.Errorf("invalid max timeout %s", d)
		}
		s.maxTimeout = d
		return nil
	}
}

// WithCacheSize sets how many results are kept (0 disables the cache)
func WithCacheSize(n int) ServerOption {
	return func(s *Server) error {
		if n < 0 {
			return fmt.Errorf("invalid cache size %d", n)
		}
		s.cacheSize = n
		return nil
	}
}

// WithReplayWindow sets how long job IDs are remembered per peer
func WithReplayWindow(d time.Duration) ServerOption {
	return func(s *Server) error {
		if d <= 0 {
			return fmt.Errorf("invalid replay window %s", d)
		}
		s.replayWindow = d
		return nil
	}
}

// WithMaxDegree rejects requests whose polynomial has degree above n
func WithMaxDegree(n int) ServerOption {
	return func(s *Server) error {
		if n < 1 {
			return fmt.Errorf("invalid max degree %d", n)
		}
		s.maxDegree = n
		return nil
	}
}

// WithRateLimit allows each peer r requests per second with bursts of up to burst
func WithRateLimit(r rate.Limit, burst int) ServerOption {
	return func(s *Server) error {
		if r <= 0 || burst < 1 {
			return fmt.Errorf("invalid rate limit %v with burst %d", r, burst)
		}
		s.rateLimit = r
		s.rateBurst = burst
		return nil
	}
}

// result is the decoded outcome of one operation
type result struct {
	factors []poly.Polynomial
	degrees []int
	roots   []field.Element
	count   int
}

// Server answers factoring requests arriving on a host
type Server struct {
	host         *host.Host
	factorizer   *factor.Factorizer
	maxTimeout   time.Duration
	maxDegree    int
	cacheSize    int
	replayWindow time.Duration
	rateLimit    rate.Limit
	rateBurst    int

	cache    *lru.Cache[string, *result]        // Results keyed by operation and monic input
	replay   *replayCache                       // Recent job IDs per peer
	limiters *lru.Cache[peer.ID, *rate.Limiter] // nil when requests are not rate limited
}

// NewServer creates a Server and installs it as the request handler of h
func NewServer(h *host.Host, opts ...ServerOption) (*Server, error) {
	s := &Server{
		host:         h,
		maxTimeout:   DefaultMaxTimeout,
		maxDegree:    DefaultMaxDegree,
		cacheSize:    DefaultCacheSize,
		replayWindow: DefaultReplayWindow,
		rateLimit:    rate.Inf,
	}
	for _, opt := range opts {
		err := opt(s)
		if err != nil {
			return nil, err
		}
	}

	if s.factorizer == nil {
		f, err := factor.New()
		if err != nil {
			return nil, err
		}
		s.factorizer = f
	}
	if s.cacheSize > 0 {
		cache, err := lru.New[string, *result](s.cacheSize)
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}
	if s.rateLimit != rate.Inf {
		limiters, err := lru.New[peer.ID, *rate.Limiter](maxTrackedPeers)
		if err != nil {
			return nil, err
		}
		s.limiters = limiters
	}
	s.replay = newReplayCache(s.replayWindow)

	h.SetRequestHandler(s.handleRequest)
	return s, nil
}

// Close stops serving requests
func (s *Server) Close() error {
	s.host.SetRequestHandler(nil)
	return s.replay.Close()
}

func (s *Server) handleRequest(ctx context.Context, from peer.ID, data []byte) ([]byte, error) {
	req := &pb.FactorRequest{}
	if err := proto.Unmarshal(data, req); err != nil {
		return nil, fmt.Errorf("malformed request: %w", err)
	}

	var resp *pb.FactorResponse
	switch {
	case !s.allow(from):
		log.Debugf("peer %s exceeded its request rate", from)
		resp = errorResponse(req.GetJobId(), ErrRateLimited)
	case req.JobId != nil && s.replay.Seen(from.String()+"/"+strconv.FormatUint(req.GetJobId(), 10)):
		log.Warnf("peer %s replayed job %d", from, req.GetJobId())
		resp = errorResponse(req.GetJobId(), ErrReplayedJob)
	default:
		resp = s.Process(ctx, req)
	}
	return proto.Marshal(resp)
}

func (s *Server) allow(from peer.ID) bool {
	if s.limiters == nil {
		return true
	}
	lim, ok := s.limiters.Get(from)
	if !ok {
		lim = rate.NewLimiter(s.rateLimit, s.rateBurst)
		if prev, found, _ := s.limiters.PeekOrAdd(from, lim); found {
			lim = prev
		}
	}
	return lim.Allow()
}

// Process runs one request; failures are reported in the response
func (s *Server) Process(ctx context.Context, req *pb.FactorRequest) *pb.FactorResponse {
	jobID := req.GetJobId()
	op := req.GetOp()

	p, err := decodePolynomial(req.GetCoefficients())
	if err != nil {
		return errorResponse(jobID, err)
	}
	if p.IsZero() {
		return errorResponse(jobID, factor.ErrZeroPolynomial)
	}
	if p.Degree() > s.maxDegree {
		return errorResponse(jobID, fmt.Errorf("%w: degree %d, limit %d", ErrPolynomialTooLarge, p.Degree(), s.maxDegree))
	}

	key := cacheKey(op, p)
	if s.cache != nil {
		if res, ok := s.cache.Get(key); ok {
			log.Debugf("job %d: %s served from cache", jobID, op)
			return res.response(jobID)
		}
	}

	timeout := s.maxTimeout
	if ms := req.GetTimeoutMs(); ms > 0 {
		timeout = min(timeout, time.Duration(ms)*time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := s.run(ctx, op, p)
	if err != nil {
		log.Warnf("job %d: %s of degree-%d polynomial failed: %v", jobID, op, p.Degree(), err)
		return errorResponse(jobID, err)
	}
	log.Debugf("job %d: %s of degree-%d polynomial took %s", jobID, op, p.Degree(), time.Since(start))

	if s.cache != nil {
		s.cache.Add(key, res)
	}
	return res.response(jobID)
}

func (s *Server) run(ctx context.Context, op pb.FactorRequest_Op, p poly.Polynomial) (*result, error) {
	switch op {
	case pb.FactorRequest_FACTOR:
		factors, err := s.factorizer.Factor(ctx, p)
		if err != nil {
			return nil, err
		}
		return &result{factors: factors}, nil

	case pb.FactorRequest_ROOTS:
		roots, err := s.factorizer.Roots(ctx, p)
		if err != nil {
			return nil, err
		}
		return &result{roots: roots}, nil

	case pb.FactorRequest_SQUARE_FREE:
		sf, err := s.factorizer.SquareFree(ctx, p)
		if err != nil {
			return nil, err
		}
		return &result{factors: []poly.Polynomial{sf}}, nil

	case pb.FactorRequest_DISTINCT_DEGREE:
		sf, err := s.factorizer.SquareFree(ctx, p)
		if err != nil {
			return nil, err
		}
		groups, err := s.factorizer.DistinctDegree(ctx, sf)
		if err != nil {
			return nil, err
		}
		res := &result{}
		for _, g := range groups {
			res.factors = append(res.factors, g.Poly)
			res.degrees = append(res.degrees, g.Degree)
		}
		return res, nil

	case pb.FactorRequest_COUNT:
		n, err := s.factorizer.CountIrreducible(ctx, p)
		if err != nil {
			return nil, err
		}
		return &result{count: n}, nil

	default:
		return nil, fmt.Errorf("%w %d", ErrUnknownOp, op)
	}
}

// response builds a fresh message so cached results are never shared between encoders
func (r *result) response(jobID uint64) *pb.FactorResponse {
	resp := &pb.FactorResponse{
		JobId: proto.Uint64(jobID),
		Count: proto.Uint32(uint32(r.count)),
	}
	for _, f := range r.factors {
		resp.Factors = append(resp.Factors, &pb.Polynomial{Coefficients: encodePolynomial(f)})
	}
	for _, d := range r.degrees {
		resp.Degrees = append(resp.Degrees, uint32(d))
	}
	for _, root := range r.roots {
		resp.Roots = append(resp.Roots, encodeElement(root))
	}
	return resp
}

func errorResponse(jobID uint64, err error) *pb.FactorResponse {
	return &pb.FactorResponse{
		JobId: proto.Uint64(jobID),
		Error: proto.String(err.Error()),
	}
}

// cacheKey identifies a request up to scaling of the input, which no operation observes
func cacheKey(op pb.FactorRequest_Op, p poly.Polynomial) string {
	return op.String() + ":" + strings.Join(binding.EncodePolynomial(p.Monic()), "")
}
