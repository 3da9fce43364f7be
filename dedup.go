package corrstream

import "time"

// dedupCandidate pairs an insight with the timestamps the canonical choice
// rule needs. Batch entries that are new to the store use the cycle time as
// their firstSeenAt.
type dedupCandidate struct {
	id        string
	kind      InsightKind
	firstSeen time.Time
}

// scopePairKey builds the equivalence key for burst and lead-lag insights:
// the exact ordered pair of parsed scopes. Two identifiers in different
// naming conventions (resource: vs monitor: forms) that resolve to the same
// cluster and pod produce the same key.
func scopePairKey(in *Insight) (string, bool) {
	s0 := in.Participants[0].Scope
	s1 := in.Participants[1].Scope
	if s0.empty() || s1.empty() {
		return "", false
	}
	return s0.Cluster + "\x00" + s0.Namespace + "\x00" + s0.Pod + "\x1f" +
		s1.Cluster + "\x00" + s1.Namespace + "\x00" + s1.Pod, true
}

// dedupeBatch annotates semantic duplicates in a freshly normalized batch
// against the union of the batch and the existing store snapshot.
// Deduplication never removes an insight; it only fills in the Dedup
// annotation. The canonical insight for an equivalence group is the one with
// the earliest firstSeenAt, ties broken by lexicographically smaller id.
//
// PMI insights arrive with precomputed hints (_deduplication); for those the
// hint decides duplicate status and this pass only resolves the canonical
// id. ChangeAttribution insights carry no equivalence signal and pass
// through untouched.
func dedupeBatch(batch []*Insight, existing []Insight, now time.Time) {
	groups := make(map[string][]dedupCandidate)

	add := func(key string, c dedupCandidate) {
		groups[key] = append(groups[key], c)
	}

	for i := range existing {
		ex := &existing[i]
		if key, ok := equivalenceKey(ex); ok {
			add(key, dedupCandidate{id: ex.ID, kind: ex.Kind, firstSeen: ex.FirstSeenAt})
		}
	}
	for _, in := range batch {
		first := in.FirstSeenAt
		if first.IsZero() {
			first = now
		}
		if key, ok := equivalenceKey(in); ok {
			add(key, dedupCandidate{id: in.ID, kind: in.Kind, firstSeen: first})
		}
	}

	canonical := make(map[string]string) // equivalence key -> canonical insight id
	for key, members := range groups {
		if len(members) < 2 {
			continue
		}
		best := members[0]
		for _, m := range members[1:] {
			if m.firstSeen.Before(best.firstSeen) ||
				(m.firstSeen.Equal(best.firstSeen) && m.id < best.id) {
				best = m
			}
		}
		canonical[key] = best.id
	}

	for _, in := range batch {
		key, ok := equivalenceKey(in)
		if !ok {
			// A PMI hint without a resolvable counterpart keeps its note but
			// gets no canonical link.
			continue
		}
		canon, found := canonical[key]
		if !found || canon == in.ID {
			if in.Kind != KindPmiCooccurrence {
				in.Dedup.IsSemanticDuplicate = false
				in.Dedup.CanonicalID = ""
			}
			continue
		}
		in.Dedup.IsSemanticDuplicate = true
		in.Dedup.CanonicalID = canon
		if in.Dedup.Note == "" {
			in.Dedup.Note = "same scope via differently-prefixed identifiers"
		}
	}
}

// equivalenceKey returns the kind-scoped equivalence key for an insight, or
// false when the insight carries no usable equivalence signal.
func equivalenceKey(in *Insight) (string, bool) {
	switch in.Kind {
	case KindBurstCorrelation, KindLeadLag, KindPmiCooccurrence:
		key, ok := scopePairKey(in)
		if !ok {
			return "", false
		}
		// Equivalence never crosses kinds: canonicalId must reference an
		// insight of the same kind.
		return in.Kind.String() + "\x1e" + key, true
	}
	return "", false
}
