// Package dimension defines the risk dimensions a governance flag can be
// raised against. Built-in dimensions ship with the engine in versioned
// schema sets; custom dimensions are minted at runtime and behave identically
// to built-ins everywhere: routing tables, scoring, serialization.
package dimension

import "fmt"

// Dimension identifies one axis of risk. Two dimensions are equal iff their
// keys match; the label is display-only and never participates in identity.
// Dimensions are immutable once minted.
type Dimension struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// String returns the display label.
func (d Dimension) String() string { return d.Label }

// Zero reports whether the dimension is the zero value.
func (d Dimension) Zero() bool { return d.Key == "" }

// SchemaVersion selects which built-in dimension set the engine ships with.
type SchemaVersion int

const (
	// SchemaV1 is the original four-dimension set.
	SchemaV1 SchemaVersion = 1
	// SchemaV2 splits ethics and technical concerns into finer-grained pairs.
	SchemaV2 SchemaVersion = 2
)

// Built-in dimensions. V1 shipped four; V2 split ETHICAL into BIAS/SAFETY and
// TECHNICAL into FEASIBILITY/QUALITY, and renamed COMMS to SECURITY coverage.
var (
	LegalIP     = Dimension{Key: "LEGAL_IP", Label: "Legal / IP Ownership"}
	Ethical     = Dimension{Key: "ETHICAL", Label: "Ethics / Responsible Use"}
	Comms       = Dimension{Key: "COMMS", Label: "Communications / Disclosure"}
	Technical   = Dimension{Key: "TECHNICAL", Label: "Technical Readiness"}
	Bias        = Dimension{Key: "BIAS", Label: "Bias / Fairness"}
	Safety      = Dimension{Key: "SAFETY", Label: "Safety / Harmful Output"}
	Security    = Dimension{Key: "SECURITY", Label: "Security / Model Integrity"}
	Feasibility = Dimension{Key: "FEASIBILITY", Label: "Technical Feasibility"}
	Quality     = Dimension{Key: "QUALITY", Label: "Output Quality"}
)

var builtinV1 = []Dimension{LegalIP, Ethical, Comms, Technical}

var builtinV2 = []Dimension{LegalIP, Bias, Safety, Security, Feasibility, Quality}

// Builtins returns the ordered built-in set for a schema version.
func Builtins(v SchemaVersion) []Dimension {
	var src []Dimension
	switch v {
	case SchemaV1:
		src = builtinV1
	default:
		src = builtinV2
	}
	out := make([]Dimension, len(src))
	copy(out, src)
	return out
}

// DuplicateKeyError reports a mint attempt that collides with a built-in key.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("dimension key %q collides with a built-in dimension", e.Key)
}

// UnknownDimensionError reports a lookup for a key this registry has never seen.
type UnknownDimensionError struct {
	Key string
}

func (e *UnknownDimensionError) Error() string {
	return fmt.Sprintf("unknown dimension %q", e.Key)
}

// Registry resolves built-in dimensions and mints custom ones.
// The schema version is fixed at construction; it is a configuration choice,
// not a runtime-detected fact.
type Registry struct {
	version  SchemaVersion
	builtins map[string]Dimension
	order    []Dimension
	minted   map[string]Dimension
}

// NewRegistry creates a registry for the given schema version.
func NewRegistry(v SchemaVersion) *Registry {
	r := &Registry{
		version:  v,
		builtins: make(map[string]Dimension),
		minted:   make(map[string]Dimension),
	}
	for _, d := range Builtins(v) {
		r.builtins[d.Key] = d
		r.order = append(r.order, d)
	}
	return r
}

// Version returns the schema version the registry was built with.
func (r *Registry) Version() SchemaVersion { return r.version }

// AllBuiltin returns the fixed ordered built-in set for the active schema.
func (r *Registry) AllBuiltin() []Dimension {
	out := make([]Dimension, len(r.order))
	copy(out, r.order)
	return out
}

// DimensionOf resolves a dimension by key, built-in or previously minted.
func (r *Registry) DimensionOf(key string) (Dimension, error) {
	if d, ok := r.builtins[key]; ok {
		return d, nil
	}
	if d, ok := r.minted[key]; ok {
		return d, nil
	}
	return Dimension{}, &UnknownDimensionError{Key: key}
}

// MintCustom binds a caller-chosen key to a label and returns the identity
// value used thereafter. Minting a key that collides with a built-in fails.
// Custom-vs-custom reuse of a key returns the same identity (key-based
// equality makes the two indistinguishable); callers are expected to reuse
// the returned value rather than re-minting.
func (r *Registry) MintCustom(key, label string) (Dimension, error) {
	if _, ok := r.builtins[key]; ok {
		return Dimension{}, &DuplicateKeyError{Key: key}
	}
	d := Dimension{Key: key, Label: label}
	r.minted[key] = d
	return d, nil
}

// Register adds an already-minted dimension (e.g. from a security preset
// pack) to the registry so DimensionOf can resolve it. Built-in collisions
// are rejected the same way MintCustom rejects them.
func (r *Registry) Register(d Dimension) error {
	if _, ok := r.builtins[d.Key]; ok {
		return &DuplicateKeyError{Key: d.Key}
	}
	r.minted[d.Key] = d
	return nil
}
