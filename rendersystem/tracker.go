package rendersystem

// resource is an object created by the caller through the render system.
type resource interface {
	Destroy()
}

// tracker remembers caller-created resources so Destroy can release the ones
// the caller left alive, newest first.
type tracker struct {
	items []resource
}

func (t *tracker) add(r resource) {
	t.items = append(t.items, r)
}

func (t *tracker) remove(r resource) {
	for i, it := range t.items {
		if it == r {
			t.items = append(t.items[:i], t.items[i+1:]...)
			return
		}
	}
}

func (t *tracker) len() int {
	return len(t.items)
}

// destroyAll destroys every tracked resource. Each Destroy removes itself
// from the tracker, so iterate over a copy.
func (t *tracker) destroyAll() {
	items := append([]resource(nil), t.items...)
	for i := len(items) - 1; i >= 0; i-- {
		items[i].Destroy()
	}
	t.items = nil
}
