package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSOptions selects the NATS server to use.
type NATSOptions struct {
	// URL of an external server. Ignored when Embedded is set.
	URL string

	// Embedded starts an in-process server with JetStream enabled.
	Embedded bool

	// StoreDir is the JetStream directory of the embedded server. Empty
	// means a temporary directory owned by the server.
	StoreDir string

	// ReadyTimeout bounds how long to wait for the embedded server.
	ReadyTimeout time.Duration
}

// NATS is an open connection to a NATS server with JetStream, optionally
// owning an embedded server.
type NATS struct {
	embedded *server.Server
	conn     *nats.Conn
	js       jetstream.JetStream
	logger   *slog.Logger
}

// ConnectNATS connects to the server described by opts, starting an embedded
// one if asked to.
func ConnectNATS(ctx context.Context, opts NATSOptions, logger *slog.Logger) (*NATS, error) {
	if logger == nil {
		logger = slog.Default()
	}
	n := &NATS{logger: logger}

	url := opts.URL
	if opts.Embedded || url == "" {
		ns, err := startEmbedded(opts)
		if err != nil {
			return nil, err
		}
		n.embedded = ns
		url = ns.ClientURL()
		logger.Info("Started embedded NATS server", "url", url)
	} else {
		logger.Info("Connecting to NATS", "url", url)
	}

	conn, err := nats.Connect(url, nats.Name("ryze"))
	if err != nil {
		n.shutdownEmbedded()
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	n.conn = conn

	js, err := jetstream.New(conn)
	if err != nil {
		n.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	n.js = js

	if err := ctx.Err(); err != nil {
		n.Close()
		return nil, err
	}
	return n, nil
}

func startEmbedded(opts NATSOptions) (*server.Server, error) {
	timeout := opts.ReadyTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ns, err := server.NewServer(&server.Options{
		Port:      -1, // Random available port
		JetStream: true,
		StoreDir:  opts.StoreDir,
		NoLog:     true,
		NoSigs:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(timeout) {
		ns.Shutdown()
		return nil, errors.New("embedded NATS server failed to start")
	}
	return ns, nil
}

// JetStream returns the JetStream context.
func (n *NATS) JetStream() jetstream.JetStream {
	return n.js
}

// URL returns the connected server URL.
func (n *NATS) URL() string {
	return n.conn.ConnectedUrl()
}

// Close drains the connection and stops the embedded server, if any.
func (n *NATS) Close() {
	if n.conn != nil {
		if err := n.conn.Drain(); err != nil {
			n.logger.Debug("NATS drain failed", "error", err)
		}
		n.conn.Close()
	}
	n.shutdownEmbedded()
}

func (n *NATS) shutdownEmbedded() {
	if n.embedded != nil {
		n.embedded.Shutdown()
		n.embedded.WaitForShutdown()
		n.embedded = nil
	}
}
