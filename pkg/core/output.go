package core

// RuntimeOutput maps a node id to the materialized reference it produced,
// in practice "database.table". It lives for the duration of one run.
type RuntimeOutput map[string]string

// Get returns the reference produced by id, if any.
func (o RuntimeOutput) Get(id string) (string, bool) {
	ref, ok := o[id]
	return ref, ok && ref != ""
}

// Set records the reference produced by id.
func (o RuntimeOutput) Set(id, ref string) {
	o[id] = ref
}
