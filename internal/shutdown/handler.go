package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Handler cancels a shared context on SIGINT/SIGTERM and runs cleanup
// functions once, newest first. An in-progress recording watches the context
// so Ctrl-C releases the microphone before the process exits.
type Handler struct {
	ctx        context.Context
	cancel     context.CancelFunc
	once       sync.Once
	mu         sync.Mutex
	cleanupFns []func()
	stop       func()
}

// New creates a new shutdown handler
func New() *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context returns the shutdown context
func (h *Handler) Context() context.Context {
	return h.ctx
}

// AddCleanup registers a function to run on shutdown.
func (h *Handler) AddCleanup(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleanupFns = append(h.cleanupFns, fn)
}

// Listen starts listening for shutdown signals
func (h *Handler) Listen() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	h.mu.Lock()
	h.stop = func() {
		signal.Stop(sigChan)
		close(done)
	}
	h.mu.Unlock()

	go func() {
		select {
		case <-sigChan:
			h.Shutdown()
		case <-done:
		}
	}()
}

// Shutdown cancels the context and runs cleanups. Safe to call more than once.
func (h *Handler) Shutdown() {
	h.once.Do(func() {
		h.cancel()

		h.mu.Lock()
		fns := h.cleanupFns
		stop := h.stop
		h.mu.Unlock()

		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
		if stop != nil {
			stop()
		}
	})
}
