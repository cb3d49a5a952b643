// internal/control/dispatcher.go
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Service is the crawler surface exposed through the control plane.
type Service interface {
	Status(ctx context.Context) (*Status, error)
	UpdateIntervals(ctx context.Context, update IntervalUpdate) (Intervals, error)
}

// HandlerFunc serves one control method.
type HandlerFunc func(ctx context.Context, params json.RawMessage) Response

// Dispatcher routes control requests to method handlers.
// It never returns a Go error to a transport; every failure becomes a Failure response.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   *zap.Logger
	mu       sync.RWMutex
}

// NewDispatcher creates a dispatcher with the status and update_interval methods registered.
func NewDispatcher(svc Service, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logger.Named("control"),
	}

	d.Register(MethodStatus, func(ctx context.Context, _ json.RawMessage) Response {
		status, err := svc.Status(ctx)
		if err != nil {
			return Failure("server internal error: " + err.Error())
		}
		return Success(status)
	})

	d.Register(MethodUpdateInterval, func(ctx context.Context, params json.RawMessage) Response {
		update, err := ParseIntervalUpdate(params)
		if err != nil {
			return Failure(err.Error())
		}
		intervals, err := svc.UpdateIntervals(ctx, update)
		if err != nil {
			return Failure(err.Error())
		}
		return Success(map[string]any{"intervals": intervals})
	})

	return d
}

// Register installs or replaces the handler of a method.
func (d *Dispatcher) Register(method string, handler HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[method] = handler
	d.logger.Debug("Control method registered", zap.String("method", method))
}

// Methods returns the registered method names in sorted order.
func (d *Dispatcher) Methods() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	methods := make([]string, 0, len(d.handlers))
	for m := range d.handlers {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// Dispatch runs the handler of req.Method.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (resp Response) {
	d.logger.Info("Processing control request",
		zap.String("method", req.Method),
		zap.ByteString("params", req.Params))

	d.mu.RLock()
	handler, ok := d.handlers[req.Method]
	d.mu.RUnlock()
	if !ok {
		return Failure("unknown method " + req.Method)
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Control handler panic",
				zap.String("method", req.Method),
				zap.Any("panic", r))
			resp = Failure(fmt.Sprintf("server internal error: %v", r))
		}
	}()

	return handler(ctx, req.Params)
}

// Handle decodes a raw request and dispatches it.
func (d *Dispatcher) Handle(ctx context.Context, body []byte) Response {
	req, err := ParseRequest(body)
	if err != nil {
		return Failure(err.Error())
	}
	return d.Dispatch(ctx, req)
}

// HandleJSON is Handle with the response encoded.
func (d *Dispatcher) HandleJSON(ctx context.Context, body []byte) []byte {
	out, err := Encode(d.Handle(ctx, body))
	if err != nil {
		d.logger.Error("Failed to encode control response", zap.Error(err))
	}
	return out
}

// Encode marshals resp. When resp cannot be encoded it returns an encoded
// Failure alongside the error.
func Encode(resp Response) ([]byte, error) {
	out, err := json.Marshal(resp)
	if err != nil {
		fallback, _ := json.Marshal(Failure("server internal error: " + err.Error()))
		return fallback, err
	}
	return out, nil
}
