package corrstream

import "strings"

// SourceKind classifies where a participant identifier came from.
type SourceKind int

const (
	// SourceKindOther is the fallback for unparseable or token identifiers.
	SourceKindOther SourceKind = iota
	// SourceKindResource identifies a resource:<cluster>/<pod> identifier.
	SourceKindResource
	// SourceKindMonitor identifies a monitor:<id>|<cluster>,<pod>,<namespace> identifier.
	SourceKindMonitor
	// SourceKindMetric identifies a metric: identifier.
	SourceKindMetric
	// SourceKindEvent identifies an evt_name: identifier.
	SourceKindEvent
)

func (k SourceKind) String() string {
	switch k {
	case SourceKindResource:
		return "resource"
	case SourceKindMonitor:
		return "monitor"
	case SourceKindMetric:
		return "metric"
	case SourceKindEvent:
		return "event"
	default:
		return "other"
	}
}

// ScopeRef is the cluster/namespace/pod context parsed from a compound
// identifier string. It is always embedded in an Insight participant, never
// stored on its own.
type ScopeRef struct {
	Cluster    string     `json:"cluster"`
	Namespace  string     `json:"namespace,omitempty"`
	Pod        string     `json:"pod,omitempty"`
	SourceKind SourceKind `json:"source_kind"`
}

// Equal reports whether two scopes denote the same cluster/namespace/pod,
// regardless of the identifier form they were parsed from.
func (s ScopeRef) Equal(o ScopeRef) bool {
	return s.Cluster == o.Cluster && s.Namespace == o.Namespace && s.Pod == o.Pod
}

// empty reports whether no scope field was extracted.
func (s ScopeRef) empty() bool {
	return s.Cluster == "" && s.Namespace == "" && s.Pod == ""
}

// ParseScope extracts a ScopeRef from a compound identifier string. Parsing
// is best-effort and never fails the caller: an identifier that matches no
// known pattern yields a ScopeRef with SourceKindOther and empty fields.
func ParseScope(identifier string) ScopeRef {
	switch {
	case strings.HasPrefix(identifier, "resource:"):
		return parseResourceScope(strings.TrimPrefix(identifier, "resource:"))
	case strings.HasPrefix(identifier, "monitor:"):
		return parseMonitorScope(strings.TrimPrefix(identifier, "monitor:"))
	case strings.HasPrefix(identifier, "metric:"):
		return ScopeRef{SourceKind: SourceKindMetric}
	case strings.HasPrefix(identifier, "evt_name:"):
		return ScopeRef{SourceKind: SourceKindEvent}
	case strings.HasPrefix(identifier, "kube_namespace:"):
		return ScopeRef{Namespace: strings.TrimPrefix(identifier, "kube_namespace:"), SourceKind: SourceKindOther}
	case strings.HasPrefix(identifier, "actual_namespace:"):
		return ScopeRef{Namespace: strings.TrimPrefix(identifier, "actual_namespace:"), SourceKind: SourceKindOther}
	case strings.HasPrefix(identifier, "pod_name:"):
		return ScopeRef{Pod: strings.TrimPrefix(identifier, "pod_name:"), SourceKind: SourceKindOther}
	}
	return ScopeRef{SourceKind: SourceKindOther}
}

// parseResourceScope handles <cluster>/<pod>. The pod segment may itself
// contain slashes and is treated as an opaque path.
func parseResourceScope(rest string) ScopeRef {
	scope := ScopeRef{SourceKind: SourceKindResource}
	if idx := strings.Index(rest, "/"); idx >= 0 {
		scope.Cluster = rest[:idx]
		scope.Pod = rest[idx+1:]
	} else {
		scope.Cluster = rest
	}
	return scope
}

// parseMonitorScope handles <id>|<cluster>,<pod>,<namespace>. Fewer than
// three comma-separated fields leave the missing fields empty.
func parseMonitorScope(rest string) ScopeRef {
	scope := ScopeRef{SourceKind: SourceKindMonitor}
	idx := strings.Index(rest, "|")
	if idx < 0 {
		return scope
	}
	fields := strings.Split(rest[idx+1:], ",")
	if len(fields) > 0 {
		scope.Cluster = strings.TrimSpace(fields[0])
	}
	if len(fields) > 1 {
		scope.Pod = strings.TrimSpace(fields[1])
	}
	if len(fields) > 2 {
		scope.Namespace = strings.TrimSpace(fields[2])
	}
	return scope
}
