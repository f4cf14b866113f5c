/*
 * Copyright 2025 Zephyr-Go Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package dlist

// List is an allocation-free circular doubly-linked list.
// Nodes are embedded in the elements themselves, so linking and unlinking
// never allocate. An element can be linked into at most one list at a time;
// violating that is a bug and panics.
type List[T any] struct {
	root Node[T] // sentinel, owner is always nil
}

// Node is the link block embedded in a list element.
// Bind must be called once to point the node at its enclosing element
// before the node is linked anywhere.
type Node[T any] struct {
	prev, next *Node[T]
	owner      *T
}

// Bind associates n with the element that embeds it.
func (n *Node[T]) Bind(owner *T) {
	n.owner = owner
}

// Owner returns the element that embeds n.
func (n *Node[T]) Owner() *T {
	return n.owner
}

// InList reports whether n is currently linked into a list.
func (n *Node[T]) InList() bool {
	return n.next != nil
}

// Remove unlinks n from whatever list contains it.
func (n *Node[T]) Remove() {
	if n.next == nil {
		panic("dlist: remove of unlinked node")
	}
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
}

func (l *List[T]) lazyInit() {
	if l.root.next == nil {
		l.root.prev = &l.root
		l.root.next = &l.root
	}
}

func (l *List[T]) insertBefore(n, at *Node[T]) {
	if n.next != nil {
		panic("dlist: insert of already-linked node")
	}
	if n.owner == nil {
		panic("dlist: insert of unbound node")
	}
	n.prev = at.prev
	n.next = at
	at.prev.next = n
	at.prev = n
}

// Append links n at the tail of l.
func (l *List[T]) Append(n *Node[T]) {
	l.lazyInit()
	l.insertBefore(n, &l.root)
}

// InsertAt links n immediately before the first element for which
// before returns true, or at the tail if there is none.
func (l *List[T]) InsertAt(n *Node[T], before func(*T) bool) {
	l.lazyInit()
	for at := l.root.next; at != &l.root; at = at.next {
		if before(at.owner) {
			l.insertBefore(n, at)
			return
		}
	}
	l.insertBefore(n, &l.root)
}

// PeekHead returns the first element of l without unlinking it,
// or nil if l is empty.
func (l *List[T]) PeekHead() *T {
	if l.Empty() {
		return nil
	}
	return l.root.next.owner
}

// NextOf returns the element following n in l, or nil if n is the last.
func (l *List[T]) NextOf(n *Node[T]) *T {
	if n.next == nil || n.next == &l.root {
		return nil
	}
	return n.next.owner
}

// Empty reports whether l has no elements.
func (l *List[T]) Empty() bool {
	return l.root.next == nil || l.root.next == &l.root
}

// Len walks the list and returns the number of elements.
func (l *List[T]) Len() int {
	n := 0
	l.Do(func(*T) { n++ })
	return n
}

// Do calls f on each element of l in list order.
// f must not link or unlink elements.
func (l *List[T]) Do(f func(*T)) {
	if l.root.next == nil {
		return
	}
	for at := l.root.next; at != &l.root; at = at.next {
		f(at.owner)
	}
}
