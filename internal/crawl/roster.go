// internal/crawl/roster.go
package crawl

// roster is an insertion-ordered set of trader uids. Not safe for concurrent use.
type roster struct {
	order []string
	index map[string]struct{}
}

func newRoster() *roster {
	return &roster{index: make(map[string]struct{})}
}

// add appends uid and reports whether it was absent.
func (r *roster) add(uid string) bool {
	if _, ok := r.index[uid]; ok {
		return false
	}
	r.index[uid] = struct{}{}
	r.order = append(r.order, uid)
	return true
}

// remove deletes uid and reports whether it was present.
func (r *roster) remove(uid string) bool {
	if _, ok := r.index[uid]; !ok {
		return false
	}
	delete(r.index, uid)
	for i, v := range r.order {
		if v == uid {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *roster) has(uid string) bool {
	_, ok := r.index[uid]
	return ok
}

func (r *roster) len() int {
	return len(r.order)
}

// snapshot copies at most limit uids in insertion order; limit <= 0 means all.
func (r *roster) snapshot(limit int) []string {
	n := len(r.order)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]string, n)
	copy(out, r.order[:n])
	return out
}
