package core

// Scalar is the set of payloads a Share or Queue may carry: values that fit
// in a machine word (or two, for 64-bit types on 32-bit MCUs, which is why
// shares written from interrupt context should be thread protected).
type Scalar interface {
	~bool |
		~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Option configures a Share or Queue
type Option func(*options)

type options struct {
	protect bool
}

// ThreadProtect masks interrupts around every access. Only needed when an
// interrupt handler (not a task) touches the value; tasks never preempt
// each other.
func ThreadProtect() Option {
	return func(o *options) {
		o.protect = true
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Share is a single-slot, last-write-wins variable shared between tasks.
// It holds no history and takes no lock. Each Share has exactly one writer
// role by convention; nothing in the type enforces it.
type Share[T Scalar] struct {
	name    string
	value   T
	protect bool
}

// NewShare creates a named share holding initial until the first Put
func NewShare[T Scalar](name string, initial T, opts ...Option) *Share[T] {
	o := buildOptions(opts)
	return &Share[T]{
		name:    name,
		value:   initial,
		protect: o.protect,
	}
}

// Name returns the share's name
func (s *Share[T]) Name() string {
	return s.name
}

// Put stores v, replacing the previous value
func (s *Share[T]) Put(v T) {
	if s.protect {
		state := disableInterrupts()
		defer restoreInterrupts(state)
	}
	s.value = v
}

// Get returns the most recently written value
func (s *Share[T]) Get() T {
	if s.protect {
		state := disableInterrupts()
		defer restoreInterrupts(state)
	}
	return s.value
}

// String describes the share for diagnostic dumps
func (s *Share[T]) String() string {
	return "Share " + s.name + " = " + valueToString(s.Get())
}
