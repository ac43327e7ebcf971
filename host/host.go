package host

import (
	"context"
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	quic "github.com/quic-go/quic-go"

	logging "github.com/ipfs/go-log/v2"
	ic "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

var log = logging.Logger("host")

const (
	DefaultPort = 7001

	// Protocol is the ALPN identifier negotiated on every connection
	Protocol = "gf128-factor/1"

	// DefaultMaxMessageSize bounds a single request or response frame
	DefaultMaxMessageSize = 1 << 20
)

var (
	// ErrNotConnected is returned when sending to a peer without a connection
	ErrNotConnected = errors.New("not connected to peer")
	// ErrNoHandler is returned to a requester when the remote host serves no requests
	ErrNoHandler = errors.New("remote host has no request handler")
	// ErrAlreadyConnected is returned when a second connection to the same peer is made
	ErrAlreadyConnected = errors.New("already connected to peer")
)

// Handler answers one request from a peer
type Handler func(ctx context.Context, from peer.ID, request []byte) ([]byte, error)

// HostOption configures a Host during construction
type HostOption func(*Host) error

// NewHost creates a Host that listens for QUIC connections and serves requests
func NewHost(opts ...HostOption) (*Host, error) {
	ctx, cancel := context.WithCancel(context.Background())

	host := &Host{
		ctx:    ctx,
		cancel: cancel,

		endpoint:       net.UDPAddrFromAddrPort(netip.AddrPortFrom(netip.IPv4Unspecified(), DefaultPort)),
		connections:    make(map[peer.ID]quic.Connection),
		maxMessageSize: DefaultMaxMessageSize,
		idleTimeout:    5 * time.Minute,
	}

	// Apply configuration options
	for _, opt := range opts {
		err := opt(host)
		if err != nil {
			cancel()
			return nil, err
		}
	}

	// Generate identity if not provided
	if host.privateKey == nil {
		_, privateKey, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			cancel()
			return nil, err
		}
		err = WithIdentity(privateKey)(host)
		if err != nil {
			cancel()
			return nil, err
		}
	}

	udpConn, err := net.ListenUDP("udp", host.endpoint)
	if err != nil {
		cancel()
		return nil, err
	}
	host.udpConn = udpConn
	host.transport = &quic.Transport{
		Conn: udpConn,
	}

	// Create self-signed certificate from identity
	if host.certificate, err = createTLSCertFromKey(host.privateKey); err != nil {
		host.transport.Close()
		udpConn.Close()
		cancel()
		return nil, err
	}
	// Configure TLS with mutual authentication
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{*host.certificate},
		ClientAuth:   tls.RequireAnyClientCert,
		NextProtos:   []string{Protocol},
	}
	host.listener, err = host.transport.Listen(tlsConfig, host.quicConfig())
	if err != nil {
		host.transport.Close()
		udpConn.Close()
		cancel()
		return nil, err
	}

	host.waitGroup.Add(1)
	go host.acceptLoop()

	return host, nil
}

// Connect establishes an outgoing connection and returns the remote peer ID
func (h *Host) Connect(ctx context.Context, addr net.Addr) (peer.ID, error) {
	tlsConfig := &tls.Config{
		Certificates:       []tls.Certificate{*h.certificate}, // Put a certificate to do client authentication
		InsecureSkipVerify: true,                              // The peer ID is checked from the certificate instead
		NextProtos:         []string{Protocol},
	}
	conn, err := h.transport.Dial(ctx, addr, tlsConfig, h.quicConfig())
	if err != nil {
		return "", err
	}

	peerID, err := h.handleConnection(conn)
	if err != nil {
		conn.CloseWithError(0, err.Error())
		return "", err
	}
	log.Infof("connected to %s at %s", peerID, addr)
	return peerID, nil
}

// Request sends one request to a connected peer on a fresh stream and waits for the reply
func (h *Host) Request(ctx context.Context, to peer.ID, request []byte) ([]byte, error) {
	h.mutex.Lock()
	conn, ok := h.connections[to]
	h.mutex.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNotConnected, to)
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		stream.CancelRead(streamCanceled)
		stream.CancelWrite(streamCanceled)
	})
	defer stop()

	if err := writeFrame(stream, request); err != nil {
		return nil, requestError(ctx, err)
	}
	h.counters.sent.Add(uint64(frameHeaderSize + len(request)))
	h.counters.requests.Add(1)
	// Closing the send side tells the remote there is nothing more to read
	if err := stream.Close(); err != nil {
		return nil, err
	}

	response, err := readFrame(stream, h.maxMessageSize)
	if err != nil {
		return nil, requestError(ctx, err)
	}
	h.counters.received.Add(uint64(frameHeaderSize + len(response)))
	return decodeResponse(response)
}

// requestError prefers the context error when a stream was canceled by ctx
func requestError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// SetRequestHandler installs the handler for incoming requests
func (h *Host) SetRequestHandler(handler Handler) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.handler = handler
}

// Peers returns the IDs of all connected peers
func (h *Host) Peers() []peer.ID {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	peers := make([]peer.ID, 0, len(h.connections))
	for id := range h.connections {
		peers = append(peers, id)
	}
	return peers
}

// Disconnect closes the connection to a peer
func (h *Host) Disconnect(id peer.ID) error {
	h.mutex.Lock()
	conn, ok := h.connections[id]
	h.mutex.Unlock()
	if !ok {
		return fmt.Errorf("%w %s", ErrNotConnected, id)
	}
	return conn.CloseWithError(0, "")
}

func (h *Host) LocalAddr() net.Addr {
	return h.transport.Conn.LocalAddr()
}

func (h *Host) ID() peer.ID {
	return h.peerID
}

func (h *Host) Close() error {
	h.cancel()
	if err := h.transport.Close(); err != nil {
		return err
	}
	// The transport does not own a socket it was handed
	if err := h.udpConn.Close(); err != nil {
		return err
	}
	h.waitGroup.Wait()
	return nil
}

func (h *Host) quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  h.idleTimeout,
		KeepAlivePeriod: h.idleTimeout / 2,
	}
}

// handleConnection registers a new connection (incoming or outgoing)
func (h *Host) handleConnection(conn quic.Connection) (peer.ID, error) {
	// Extract peer ID from TLS certificate
	peerCert := conn.ConnectionState().TLS.PeerCertificates[0]
	peerID, err := parsePeerIDFromCertificate(peerCert)
	if err != nil {
		return "", fmt.Errorf("failed parsing for a peer ID from the TLS certificate: %w", err)
	}

	// Lock to read/write the peer set
	h.mutex.Lock()
	defer h.mutex.Unlock()

	// Prevent duplicate connections
	if _, exists := h.connections[peerID]; exists {
		return "", fmt.Errorf("%w %s", ErrAlreadyConnected, peerID)
	}
	h.connections[peerID] = conn

	h.waitGroup.Add(2)
	go h.streamLoop(peerID, conn)
	go func() {
		defer h.waitGroup.Done()
		// Clean up when connection closes
		<-conn.Context().Done()

		h.mutex.Lock()
		if h.connections[peerID] == conn {
			delete(h.connections, peerID)
		}
		h.mutex.Unlock()
		log.Debugf("connection to %s closed", peerID)
	}()
	return peerID, nil
}

// acceptLoop handles incoming connections
func (h *Host) acceptLoop() {
	defer h.waitGroup.Done()

	log.Infof("listening on %s", h.LocalAddr())
	log.Infof("peer ID: %s", h.peerID)

	for {
		conn, err := h.listener.Accept(h.ctx)
		if err != nil {
			if h.ctx.Err() == nil {
				log.Warnf("listener accept error: %v", err)
			}
			return
		}

		peerID, err := h.handleConnection(conn)
		if err != nil {
			log.Warnf("failed to handle connection: %v", err)
			conn.CloseWithError(0, err.Error())
			continue
		}
		log.Infof("accepted connection from %s at %s", peerID, conn.RemoteAddr())
	}
}

// streamLoop serves every request stream the peer opens until the connection ends
func (h *Host) streamLoop(from peer.ID, conn quic.Connection) {
	defer h.waitGroup.Done()

	for {
		stream, err := conn.AcceptStream(h.ctx)
		if err != nil {
			return
		}
		h.waitGroup.Add(1)
		go h.serveStream(from, stream)
	}
}

func (h *Host) serveStream(from peer.ID, stream quic.Stream) {
	defer h.waitGroup.Done()
	defer stream.Close()

	request, err := readFrame(stream, h.maxMessageSize)
	if err != nil {
		log.Warnf("failed to read request from %s: %v", from, err)
		stream.CancelRead(streamCanceled)
		return
	}
	h.counters.received.Add(uint64(frameHeaderSize + len(request)))

	h.mutex.Lock()
	handler := h.handler
	h.mutex.Unlock()

	var response []byte
	if handler == nil {
		response = encodeResponse(nil, ErrNoHandler)
	} else {
		// The stream context ends when either side cancels the stream
		reply, err := handler(stream.Context(), from, request)
		if err != nil {
			log.Debugf("request from %s failed: %v", from, err)
		}
		response = encodeResponse(reply, err)
	}

	if err := writeFrame(stream, response); err != nil {
		log.Warnf("failed to write response to %s: %v", from, err)
		return
	}
	h.counters.sent.Add(uint64(frameHeaderSize + len(response)))
	h.counters.served.Add(1)
}

func WithAddrPort(ep netip.AddrPort) HostOption {
	return func(h *Host) error {
		h.endpoint = net.UDPAddrFromAddrPort(ep)
		return nil
	}
}

// WithMaxMessageSize bounds the size of a single frame
func WithMaxMessageSize(n int) HostOption {
	return func(h *Host) error {
		if n <= 0 {
			return fmt.Errorf("invalid max message size %d", n)
		}
		h.maxMessageSize = n
		return nil
	}
}

// WithIdleTimeout sets how long an unused connection is kept open
func WithIdleTimeout(d time.Duration) HostOption {
	return func(h *Host) error {
		if d <= 0 {
			return fmt.Errorf("invalid idle timeout %s", d)
		}
		h.idleTimeout = d
		return nil
	}
}

// WithIdentity sets the host's identity from a private key
func WithIdentity(privateKey crypto.PrivateKey) HostOption {
	return func(h *Host) error {
		var pubkey ic.PubKey
		var privkey ic.PrivKey
		var err error

		// Extract peer ID from private key
		switch key := privateKey.(type) {
		case ed25519.PrivateKey:
			privkey, err = ic.UnmarshalEd25519PrivateKey(key)
			if err == nil {
				pubkey = privkey.GetPublic()
			}
		default:
			return fmt.Errorf("unsupported key type: %T", privateKey)
		}
		if err != nil {
			return err
		}
		peerID, err := peer.IDFromPublicKey(pubkey)
		if err != nil {
			return err
		}

		h.privateKey = privateKey
		h.peerID = peerID
		return nil
	}
}

// Host serves and issues factoring requests over QUIC
type Host struct {
	ctx       context.Context
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup

	mutex sync.Mutex // Protects connections and handler

	connections map[peer.ID]quic.Connection // Active connections
	handler     Handler                     // Serves incoming requests

	certificate    *tls.Certificate  // Self-signed TLS certificate
	endpoint       *net.UDPAddr      // Local UDP endpoint
	peerID         peer.ID           // This host's peer ID
	privateKey     crypto.PrivateKey // Identity private key
	maxMessageSize int               // Largest accepted frame payload
	idleTimeout    time.Duration     // QUIC idle timeout

	udpConn   *net.UDPConn    // Socket underneath the transport
	transport *quic.Transport // QUIC transport layer
	listener  *quic.Listener  // Incoming connection listener

	counters struct {
		sent, received   atomic.Uint64 // Frame bytes including headers
		requests, served atomic.Uint64 // Requests issued and answered
	}
}

// Stats is a snapshot of the traffic a host has carried
type Stats struct {
	BytesSent     uint64
	BytesReceived uint64
	Requests      uint64 // Requests sent to peers
	Served        uint64 // Requests answered for peers
}

// Stats returns the current traffic counters
func (h *Host) Stats() Stats {
	return Stats{
		BytesSent:     h.counters.sent.Load(),
		BytesReceived: h.counters.received.Load(),
		Requests:      h.counters.requests.Load(),
		Served:        h.counters.served.Load(),
	}
}
