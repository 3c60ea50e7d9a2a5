package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"rummy-engine/engine"
	"rummy-engine/models"
)

const maxLineBytes = 1024 * 1024

type TCPServer struct {
	address        string
	listener       net.Listener
	handler        *CommandHandler
	sessionManager *engine.SessionManager
	logger         *zap.Logger
	conn           net.Conn
	mu             sync.Mutex
	ready          chan struct{}
	stopChan       chan struct{}
	stopOnce       sync.Once
}

func NewTCPServer(address string, sessionManager *engine.SessionManager, logger *zap.Logger) *TCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TCPServer{
		address:        address,
		handler:        NewCommandHandler(sessionManager),
		sessionManager: sessionManager,
		logger:         logger.With(zap.String("component", "tcp")),
		ready:          make(chan struct{}),
		stopChan:       make(chan struct{}),
	}
}

// Start listens and serves until Stop is called. Only the most recently
// connected client receives engine events.
func (s *TCPServer) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	close(s.ready)
	s.logger.Info("TCP server listening", zap.String("address", listener.Addr().String()))

	go s.eventBroadcaster()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.stopChan:
				return nil
			default:
			}
			s.logger.Warn("Error accepting connection", zap.Error(err))
			continue
		}

		s.logger.Info("Client connected", zap.String("remote", conn.RemoteAddr().String()))
		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()

		go s.handleConnection(conn)
	}
}

// Addr blocks until the listener is bound and returns its address.
func (s *TCPServer) Addr() net.Addr {
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener.Addr()
}

func (s *TCPServer) handleConnection(conn net.Conn) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		s.logger.Info("Client disconnected")
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, maxLineBytes), maxLineBytes)

	for scanner.Scan() {
		var cmd models.Command
		if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
			s.write(conn, models.Response{
				Success: false,
				Error:   fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}

		response := s.handler.Handle(cmd)
		if !response.Success {
			s.logger.Debug("Command failed", zap.String("command", cmd.Command), zap.String("error", response.Error))
		}
		s.write(conn, response)
	}

	if err := scanner.Err(); err != nil {
		s.logger.Warn("Scanner error", zap.Error(err))
	}
}

// write serializes one line; responses and events share the connection.
func (s *TCPServer) write(conn net.Conn, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Error marshaling message", zap.Error(err))
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := conn.Write(data); err != nil {
		s.logger.Warn("Error writing message", zap.Error(err))
	}
}

func (s *TCPServer) sendEvent(event models.Event) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return
	}
	s.write(conn, event)
}

func (s *TCPServer) eventBroadcaster() {
	eventChan := s.sessionManager.GetEventChannel()
	for {
		select {
		case <-s.stopChan:
			return
		case event := <-eventChan:
			s.sendEvent(event)
		}
	}
}

func (s *TCPServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.listener != nil {
			s.listener.Close()
		}
		if s.conn != nil {
			s.conn.Close()
		}
	})
}
