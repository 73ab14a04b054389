package logging

import (
	"fmt"
	"runtime/debug"
)

// RecoveryHandler turns panics into logged errors for one component.
type RecoveryHandler struct {
	Component string
	Log       *Logger
	OnPanic   func(rec any, stack string)
}

// NewRecoveryHandler creates a recovery handler for a component
func NewRecoveryHandler(component string) *RecoveryHandler {
	return &RecoveryHandler{Component: component, Log: New(component)}
}

// Wrap executes fn with panic recovery
func (r *RecoveryHandler) Wrap(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.handlePanic(rec, string(debug.Stack()))
		}
	}()
	fn()
}

// WrapError executes fn with panic recovery, returning an error on panic.
func (r *RecoveryHandler) WrapError(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = r.handlePanic(rec, string(debug.Stack()))
		}
	}()
	return fn()
}

func (r *RecoveryHandler) handlePanic(rec any, stack string) error {
	err := fmt.Errorf("panic in %s: %v", r.Component, rec)
	log := r.Log
	if log == nil {
		log = New(r.Component)
	}
	log.Error("panic_recovered", map[string]any{"stack": stack}, err)
	if r.OnPanic != nil {
		r.OnPanic(rec, stack)
	}
	return err
}

// SafeGo launches a goroutine with panic recovery
func SafeGo(component string, fn func()) {
	go NewRecoveryHandler(component).Wrap(fn)
}
