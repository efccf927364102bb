package observe

// Component kinds reported in telemetry.
const (
	KindMap  = "map"
	KindData = "data"
	KindTree = "tree"
	KindTask = "task"
)

// ResourceMeta identifies a cache component for telemetry purposes.
type ResourceMeta struct {
	Name string // Resource name (required), e.g. "users"
	Kind string // One of the Kind constants (optional)
}

// ID returns "<kind>.<name>" or just the name when Kind is empty.
func (m ResourceMeta) ID() string {
	if m.Kind != "" {
		return m.Kind + "." + m.Name
	}
	return m.Name
}

// SpanName returns the deterministic span name for an operation.
// Format: resource.<op>.<name>
func (m ResourceMeta) SpanName(op string) string {
	return "resource." + op + "." + m.Name
}
