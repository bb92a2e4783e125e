// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package executor

import (
	"reflect"
	"strings"

	"github.com/tochemey/procpool/internal/syncmap"
)

// Registry defines the task types registry interface
type Registry interface {
	// Register a task type
	Register(task Task)
	// Deregister removes the registered task type from the registry
	Deregister(task Task)
	// Exists returns true when a given task name is in the registry
	Exists(name string) bool
	// TypeOf returns the type registered under the given name
	TypeOf(name string) (reflect.Type, bool)
}

type registry struct {
	m *syncmap.SyncMap[string, reflect.Type]
}

var _ Registry = (*registry)(nil)

// NewRegistry creates a new task types registry
func NewRegistry() Registry {
	return &registry{
		m: syncmap.New[string, reflect.Type](),
	}
}

// Register a task type
func (x *registry) Register(task Task) {
	x.m.Set(NameOf(task), reflectType(task))
}

// Deregister removes the registered task type from the registry
func (x *registry) Deregister(task Task) {
	x.m.Delete(NameOf(task))
}

// Exists returns true when a given task name is in the registry
func (x *registry) Exists(name string) bool {
	_, ok := x.m.Get(lowTrim(name))
	return ok
}

// TypeOf returns the type registered under the given name
func (x *registry) TypeOf(name string) (reflect.Type, bool) {
	return x.m.Get(lowTrim(name))
}

// NameOf returns the registry name of a given task. Use it on the parent side
// to designate the task in Pool.Process, Pool.Defer and Pool.Map calls.
func NameOf(task any) string {
	return lowTrim(reflectType(task).String())
}

// reflectType returns the runtime type of the task
func reflectType(v any) reflect.Type {
	rtype := reflect.TypeOf(v)
	if rtype.Kind() == reflect.Ptr {
		rtype = rtype.Elem()
	}
	return rtype
}

// lowTrim trims any space and lowers the string value
func lowTrim(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
