package candidate

// Pool is the ordered, bounded set of candidates for one turn. A pool is bound
// to exactly one source; NewPool drops anything that claims another source.
type Pool struct {
	Source     Scope       `json:"source"`
	Candidates []Candidate `json:"candidates"`

	// Dropped counts candidates rejected while building (foreign source or
	// duplicate id).
	Dropped int `json:"-"`
}

// NewPool builds a pool for source from raw candidates. Candidates without a
// source inherit it; candidates from a different source are dropped; the first
// occurrence of a duplicate id wins.
func NewPool(source Scope, raw []Candidate) Pool {
	pool := Pool{Source: source, Candidates: make([]Candidate, 0, len(raw))}
	seen := make(map[string]bool, len(raw))

	for _, c := range raw {
		if c.ID == "" {
			pool.Dropped++
			continue
		}
		if c.Source.IsZero() {
			c.Source = source
		} else if !c.Source.Equal(source) {
			pool.Dropped++
			continue
		}
		if seen[c.ID] {
			pool.Dropped++
			continue
		}
		seen[c.ID] = true

		if c.Ref.ScopeID == "" {
			c.Ref.ScopeID = source.String()
		}
		if c.Ref.EntityID == "" {
			c.Ref.EntityID = c.ID
		}
		pool.Candidates = append(pool.Candidates, c)
	}

	return pool
}

func (p Pool) Len() int {
	return len(p.Candidates)
}

func (p Pool) IsEmpty() bool {
	return len(p.Candidates) == 0
}

// Get returns the candidate with id.
func (p Pool) Get(id string) (Candidate, bool) {
	for _, c := range p.Candidates {
		if c.ID == id {
			return c, true
		}
	}
	return Candidate{}, false
}

func (p Pool) Contains(id string) bool {
	_, ok := p.Get(id)
	return ok
}

// IDs returns candidate ids in pool order.
func (p Pool) IDs() []string {
	ids := make([]string, 0, len(p.Candidates))
	for _, c := range p.Candidates {
		ids = append(ids, c.ID)
	}
	return ids
}

// Without returns a copy of the pool minus the given ids.
func (p Pool) Without(ids []string) Pool {
	if len(ids) == 0 {
		return p
	}
	skip := make(map[string]bool, len(ids))
	for _, id := range ids {
		skip[id] = true
	}

	out := Pool{Source: p.Source, Candidates: make([]Candidate, 0, len(p.Candidates))}
	for _, c := range p.Candidates {
		if !skip[c.ID] {
			out.Candidates = append(out.Candidates, c)
		}
	}
	return out
}

// Subset returns the candidates whose ids are listed, in pool order. Ids that
// are not in the pool are ignored.
func (p Pool) Subset(ids []string) Pool {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}

	out := Pool{Source: p.Source, Candidates: make([]Candidate, 0, len(ids))}
	for _, c := range p.Candidates {
		if keep[c.ID] {
			out.Candidates = append(out.Candidates, c)
		}
	}
	return out
}

// Truncate caps the pool at max candidates. max <= 0 leaves it untouched.
func (p Pool) Truncate(max int) Pool {
	if max <= 0 || len(p.Candidates) <= max {
		return p
	}
	out := p
	out.Candidates = append([]Candidate(nil), p.Candidates[:max]...)
	out.Dropped += len(p.Candidates) - max
	return out
}

// Ordered moves the listed ids to the front in the given order, keeping the
// rest in pool order. Ordinals after a clarifier count the options as shown.
func (p Pool) Ordered(ids []string) Pool {
	out := Pool{Source: p.Source, Candidates: make([]Candidate, 0, len(p.Candidates)), Dropped: p.Dropped}
	placed := make(map[string]bool, len(ids))
	for _, id := range ids {
		if c, ok := p.Get(id); ok && !placed[id] {
			placed[id] = true
			out.Candidates = append(out.Candidates, c)
		}
	}
	for _, c := range p.Candidates {
		if !placed[c.ID] {
			out.Candidates = append(out.Candidates, c)
		}
	}
	return out
}
