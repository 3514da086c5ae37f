package callingconv

import "fmt"

// maxCArgs bounds a wrapper's arity to the SysV integer argument registers
// (rdi, rsi, rdx, rcx, r8, r9) — a call needing more arguments would have
// to spill to the stack, which no component generates adapters for yet.
const maxCArgs = 6

// Signature is the fixed all-i64 function shape create_signature in
// original_source/compiler/backend/src/cranelift/compiler.rs always
// builds regardless of a word's declared stack effect: CallConv SystemV,
// every parameter and the return value typed i64.
type Signature struct {
	ParamCount int
}

// Wrapper is a cached FFI bridge for one (symbol, arity) pair (§4.17,
// SPEC_FULL §12 item 5): the adapter a call site reuses rather than
// re-deriving on every call to the same foreign symbol.
type Wrapper struct {
	Symbol    string
	Arity     int
	Signature Signature
}

// FFIRegistry caches Wrappers by symbol, populated lazily exactly as
// original_source's FFIRegistry does for libc functions
// (register_libc_functions / get_function).
type FFIRegistry struct {
	wrappers map[string]*Wrapper
}

// NewFFIRegistry returns an empty registry.
func NewFFIRegistry() *FFIRegistry {
	return &FFIRegistry{wrappers: make(map[string]*Wrapper)}
}

// CreateWrapper builds and caches a Wrapper for symbol with the given
// arity, replacing any previously cached wrapper for the same symbol.
func (r *FFIRegistry) CreateWrapper(symbol string, arity int) (*Wrapper, error) {
	if arity < 0 || arity > maxCArgs {
		return nil, fmt.Errorf("callingconv: %q needs %d arguments, only 0..%d are supported by the SysV integer-register adapter", symbol, arity, maxCArgs)
	}
	w := &Wrapper{Symbol: symbol, Arity: arity, Signature: Signature{ParamCount: arity}}
	r.wrappers[symbol] = w
	return w, nil
}

// Get returns the cached wrapper for symbol, if one was created.
func (r *FFIRegistry) Get(symbol string) (*Wrapper, bool) {
	w, ok := r.wrappers[symbol]
	return w, ok
}

// Names returns every symbol currently cached, in no particular order.
func (r *FFIRegistry) Names() []string {
	names := make([]string, 0, len(r.wrappers))
	for name := range r.wrappers {
		names = append(names, name)
	}
	return names
}

// libcArity lists the libc entry points a Forth program can usefully call
// directly, mirroring register_libc_functions in the Rust original.
var libcArity = map[string]int{
	"putchar": 1,
	"getchar": 0,
	"malloc":  1,
	"free":    1,
	"strlen":  1,
	"exit":    1,
}

// RegisterLibc pre-populates the registry with the libc functions
// listed in libcArity.
func (r *FFIRegistry) RegisterLibc() error {
	for name, arity := range libcArity {
		if _, err := r.CreateWrapper(name, arity); err != nil {
			return err
		}
	}
	return nil
}
