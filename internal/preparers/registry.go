package preparers

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/stacklok/techdocs-preparer/internal/entity"
)

// ErrNotRegistered matches every NotRegisteredError via errors.Is
var ErrNotRegistered = errors.New("no preparer registered")

// NotRegisteredError is returned when no preparer is bound to a protocol
type NotRegisteredError struct {
	Protocol RemoteProtocol
}

// Error returns the error message
func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("no preparer registered for type: %q", string(e.Protocol))
}

// Is reports whether target is ErrNotRegistered
func (*NotRegisteredError) Is(target error) bool {
	return target == ErrNotRegistered
}

// Registry maps remote protocols to the preparer responsible for them.
// A protocol is bound to at most one preparer; registering it again replaces
// the previous binding. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	preparers map[RemoteProtocol]Preparer
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		preparers: make(map[RemoteProtocol]Preparer),
	}
}

// Register binds protocol to preparer, replacing any earlier binding
func (r *Registry) Register(protocol RemoteProtocol, preparer Preparer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.preparers[protocol] = preparer
}

// Get returns the preparer for the protocol named by the entity's
// techdocs-ref annotation. Annotation parse errors are returned unchanged.
func (r *Registry) Get(e *entity.Entity) (Preparer, error) {
	ref, err := entity.ParseReferenceAnnotation(entity.TechDocsRefAnnotation, e)
	if err != nil {
		return nil, err
	}

	return r.Lookup(RemoteProtocol(ref.Type))
}

// Lookup returns the preparer bound to protocol. Matching is exact.
func (r *Registry) Lookup(protocol RemoteProtocol) (Preparer, error) {
	r.mu.RLock()
	preparer, ok := r.preparers[protocol]
	r.mu.RUnlock()

	if !ok {
		return nil, &NotRegisteredError{Protocol: protocol}
	}
	return preparer, nil
}

// Protocols returns the registered protocols in sorted order
func (r *Registry) Protocols() []RemoteProtocol {
	r.mu.RLock()
	protocols := make([]RemoteProtocol, 0, len(r.preparers))
	for protocol := range r.preparers {
		protocols = append(protocols, protocol)
	}
	r.mu.RUnlock()

	slices.Sort(protocols)
	return protocols
}
