package pipeline

import "fmt"

// Factory builds a service around a prepared Base.
type Factory func(base *Base) (Service, error)

// Definition describes one registrable service.
type Definition struct {
	Name    string
	Trigger string
	Queue   string
	Factory Factory
}

func Define(name, trigger, queue string, factory Factory) (Definition, error) {
	if trigger == "" {
		return Definition{}, &ConfigurationError{Field: "trigger", Message: msgTriggerRequired}
	}
	if queue == "" {
		return Definition{}, &ConfigurationError{Field: "queue", Message: msgQueueRequired}
	}
	if factory == nil {
		return Definition{}, &ConfigurationError{Field: "factory", Message: fmt.Sprintf("service %s needs a factory", name)}
	}
	if name == "" {
		name = trigger
	}
	return Definition{Name: name, Trigger: trigger, Queue: queue, Factory: factory}, nil
}

// Registry maps triggers to service definitions. It is filled at startup and
// only read afterwards.
type Registry struct {
	byTrigger map[string]Definition
	order     []string
}

func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{byTrigger: make(map[string]Definition, len(defs))}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(def Definition) error {
	if def.Trigger == "" {
		return &ConfigurationError{Field: "trigger", Message: msgTriggerRequired}
	}
	if def.Queue == "" {
		return &ConfigurationError{Field: "queue", Message: msgQueueRequired}
	}
	if existing, ok := r.byTrigger[def.Trigger]; ok {
		return &ConfigurationError{
			Field:   "trigger",
			Message: fmt.Sprintf("trigger %q is already handled by %s, cannot register %s", def.Trigger, existing.Name, def.Name),
		}
	}
	r.byTrigger[def.Trigger] = def
	r.order = append(r.order, def.Trigger)
	return nil
}

func (r *Registry) Lookup(trigger string) (Definition, bool) {
	def, ok := r.byTrigger[trigger]
	return def, ok
}

func (r *Registry) Len() int {
	return len(r.order)
}

// Triggers returns the registered triggers in registration order.
func (r *Registry) Triggers() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
