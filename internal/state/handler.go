package state

import (
	"fmt"
	"net/http"
	"sync"

	"reflex/internal/logging"
)

// Method enumerates the HTTP methods a route module may handle. The
// router dispatches on this closed set rather than arbitrary strings.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodPatch  Method = http.MethodPatch
	MethodDelete Method = http.MethodDelete
)

// State is the shape of a handler's stored value: a flat structured
// object updated by shallow merge. The store performs no schema
// validation; the first writer for a key establishes the shape.
type State = map[string]any

// ChangeFunc observes a completed state mutation.
type ChangeFunc func(newState, previousState State)

// Handler is a disposable view over one store entry addressed by a
// stable key. A reload destroys the Handler but not the entry, so the
// next Handler constructed with the same key adopts the surviving
// value instead of its initial state. Change subscribers live on the
// instance and deliberately do not survive recreation.
type Handler struct {
	mu       sync.Mutex
	store    *Store
	key      string
	initial  State
	methods  map[Method]http.HandlerFunc
	onChange []ChangeFunc
	logger   *logging.Logger
}

// HandlerOptions carries the optional collaborators for NewHandler.
type HandlerOptions struct {
	Methods map[Method]http.HandlerFunc
	Logger  *logging.Logger
}

// NewHandler creates a handler keyed by the router-supplied stable
// route identity. If the store already holds a value for key (state
// surviving a prior instance destroyed by reload), that value wins
// over initialState; otherwise the store is seeded with initialState.
func NewHandler(store *Store, key string, initialState State, options HandlerOptions) *Handler {
	if store == nil {
		store = Default
	}
	handler := &Handler{
		store:   store,
		key:     "handler:" + key,
		initial: cloneState(initialState),
		methods: options.Methods,
		logger:  options.Logger,
	}
	if _, ok := store.Get(handler.key).(State); !ok {
		store.Set(handler.key, cloneState(initialState), 0)
	}
	return handler
}

// State returns the current stored value.
func (handler *Handler) State() State {
	if handler == nil {
		return nil
	}
	current, _ := handler.store.Get(handler.key).(State)
	return current
}

// SetState replaces the stored value. A nil or non-structured input is
// absorbed as a no-op; reload races must not be able to blank state.
func (handler *Handler) SetState(newState State) {
	if handler == nil || newState == nil {
		return
	}
	handler.mu.Lock()
	previous := handler.State()
	handler.store.Set(handler.key, newState, 0)
	handler.mu.Unlock()
	handler.notify(newState, previous)
}

// UpdateState applies updater to the previous state and shallow-merges
// the returned partial into it, returning the merged state.
func (handler *Handler) UpdateState(updater func(previous State) State) State {
	if handler == nil || updater == nil {
		return handler.State()
	}
	handler.mu.Lock()
	previous := handler.State()
	partial := updater(previous)
	merged := cloneState(previous)
	if merged == nil {
		merged = State{}
	}
	for key, value := range partial {
		merged[key] = value
	}
	handler.store.Set(handler.key, merged, 0)
	handler.mu.Unlock()
	handler.notify(merged, previous)
	return merged
}

// ResetState restores the value captured at construction time,
// regardless of mutations since.
func (handler *Handler) ResetState() {
	if handler == nil {
		return
	}
	handler.mu.Lock()
	previous := handler.State()
	restored := cloneState(handler.initial)
	handler.store.Set(handler.key, restored, 0)
	handler.mu.Unlock()
	handler.notify(restored, previous)
}

// OnStateChange registers a per-instance subscriber invoked
// synchronously after every successful mutation.
func (handler *Handler) OnStateChange(callback ChangeFunc) {
	if handler == nil || callback == nil {
		return
	}
	handler.mu.Lock()
	handler.onChange = append(handler.onChange, callback)
	handler.mu.Unlock()
}

// Method returns the registered handler for an HTTP method.
func (handler *Handler) Method(method Method) (http.HandlerFunc, bool) {
	if handler == nil {
		return nil, false
	}
	fn, ok := handler.methods[method]
	return fn, ok
}

func (handler *Handler) notify(newState, previous State) {
	handler.mu.Lock()
	callbacks := make([]ChangeFunc, len(handler.onChange))
	copy(callbacks, handler.onChange)
	handler.mu.Unlock()

	for _, callback := range callbacks {
		handler.invoke(callback, newState, previous)
	}
}

// invoke isolates one subscriber: a panicking callback must not undo
// the mutation or starve the remaining subscribers.
func (handler *Handler) invoke(callback ChangeFunc, newState, previous State) {
	defer func() {
		if recovered := recover(); recovered != nil && handler.logger != nil {
			handler.logger.Warn("state change subscriber panicked", map[string]string{
				"key":   handler.key,
				"panic": fmt.Sprint(recovered),
			})
		}
	}()
	callback(newState, previous)
}

func cloneState(source State) State {
	if source == nil {
		return nil
	}
	cloned := make(State, len(source))
	for key, value := range source {
		cloned[key] = value
	}
	return cloned
}
