// Package env composes stage environments and persists named environment
// configs in the workspace.
//
// Variables are never written to the mb process environment. A [Vars] value
// is built for each stage and handed to the execution agent explicitly.
package env

import (
	"sort"
	"strings"
)

// Vars is an insertion-ordered set of environment variables.
type Vars struct {
	keys   []string
	values map[string]string
}

// NewVars returns an empty Vars.
func NewVars() *Vars {
	return &Vars{values: make(map[string]string)}
}

// FromMap builds Vars from m in sorted key order.
func FromMap(m map[string]string) *Vars {
	v := NewVars()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Set(k, m[k])
	}
	return v
}

// Set assigns a variable. Re-setting a name keeps its original position.
func (v *Vars) Set(key, value string) {
	if v.values == nil {
		v.values = make(map[string]string)
	}
	if _, ok := v.values[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.values[key] = value
}

// Get returns a variable and whether it is set.
func (v *Vars) Get(key string) (string, bool) {
	if v == nil {
		return "", false
	}
	value, ok := v.values[key]
	return value, ok
}

// Delete removes a variable.
func (v *Vars) Delete(key string) {
	if _, ok := v.values[key]; !ok {
		return
	}
	delete(v.values, key)
	for i, k := range v.keys {
		if k == key {
			v.keys = append(v.keys[:i], v.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the variable names in insertion order.
func (v *Vars) Keys() []string {
	if v == nil {
		return nil
	}
	return append([]string(nil), v.keys...)
}

// Len returns the number of variables.
func (v *Vars) Len() int {
	if v == nil {
		return 0
	}
	return len(v.keys)
}

// Merge copies every variable of other into v; other wins on conflicts.
func (v *Vars) Merge(other *Vars) *Vars {
	for _, k := range other.Keys() {
		value, _ := other.Get(k)
		v.Set(k, value)
	}
	return v
}

// Clone returns an independent copy.
func (v *Vars) Clone() *Vars {
	return NewVars().Merge(v)
}

// Pairs returns "KEY=VALUE" strings in insertion order, the shape expected
// by exec.Cmd.Env.
func (v *Vars) Pairs() []string {
	pairs := make([]string, 0, v.Len())
	for _, k := range v.Keys() {
		pairs = append(pairs, k+"="+v.values[k])
	}
	return pairs
}

// Map returns the variables as a plain map.
func (v *Vars) Map() map[string]string {
	m := make(map[string]string, v.Len())
	for _, k := range v.Keys() {
		m[k] = v.values[k]
	}
	return m
}

// ParsePairs parses "KEY=VALUE" strings, splitting on the first '='.
// Entries without '=' or with an empty name are skipped.
func ParsePairs(pairs []string) *Vars {
	v := NewVars()
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		v.Set(key, value)
	}
	return v
}
