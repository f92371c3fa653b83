//go:build !linux

package ble

// Server is a placeholder on platforms without peripheral support.
type Server struct {
	h *Handler
}

// NewServer returns a server whose Start always fails.
func NewServer(h *Handler, _ string, _ int) *Server { return &Server{h: h} }

func (s *Server) Start() error    { return ErrUnsupported }
func (s *Server) Refresh()        {}
func (s *Server) Connected() bool { return false }
func (s *Server) Stop() error     { return nil }
