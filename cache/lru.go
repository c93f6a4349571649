package cache

// lruNode is a node in a doubly-linked eviction list.
// The node stores its key for O(1) deletion from the parent map.
type lruNode struct {
	key  Key
	prev *lruNode
	next *lruNode
}

// lruList is a doubly-linked list ordering evictable entries.
// The list is not thread-safe; the cache mutex guards it.
//
// The head is the most recently released, the tail the eviction candidate.
type lruList struct {
	head *lruNode
	tail *lruNode
	len  int
}

// Len returns the number of nodes in the list.
func (l *lruList) Len() int {
	return l.len
}

// PushFront adds a new node at the front (most recently released).
// Returns the created node for later removal.
func (l *lruList) PushFront(key Key) *lruNode {
	node := &lruNode{key: key}
	if l.head == nil {
		l.head = node
		l.tail = node
	} else {
		node.next = l.head
		l.head.prev = node
		l.head = node
	}
	l.len++
	return node
}

// Remove unlinks a node, e.g. when its entry is referenced again.
func (l *lruList) Remove(node *lruNode) {
	if node == nil {
		return
	}
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	l.len--
}

// RemoveOldest removes and returns the key of the least recently released
// node. Returns zero value and false if the list is empty.
func (l *lruList) RemoveOldest() (Key, bool) {
	if l.tail == nil {
		return Key{}, false
	}
	node := l.tail
	l.Remove(node)
	return node.key, true
}
