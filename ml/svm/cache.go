package svm

const (
	scalarBytes        = 8
	cacheEntryOverhead = 4 // per-row bookkeeping, in scalar units
)

type cacheEntry struct {
	prev, next *cacheEntry
	data       []float64
}

// Cache is a least-recently-used store of kernel rows. Row r holds the values
// of columns [0, len) for whatever column order the caller uses; capacity is
// counted in scalars derived from a byte budget.
type Cache struct {
	size    int64
	entries []cacheEntry
	lru     cacheEntry
}

// NewCache keeps room for at least two full rows whatever the byte budget.
func NewCache(rows int, bytes int64) *Cache {
	c := &Cache{
		entries: make([]cacheEntry, rows),
		size:    bytes/scalarBytes - int64(rows*cacheEntryOverhead),
	}
	if minSize := int64(2 * rows); c.size < minSize {
		c.size = minSize
	}
	c.lru.next = &c.lru
	c.lru.prev = &c.lru
	return c
}

func (c *Cache) unlink(h *cacheEntry) {
	h.prev.next = h.next
	h.next.prev = h.prev
}

// link inserts h as the most recently used entry.
func (c *Cache) link(h *cacheEntry) {
	h.next = &c.lru
	h.prev = c.lru.prev
	h.prev.next = h
	h.next.prev = h
}

// Get returns the first n values of row, and the position from which the
// caller still has to fill them in (start >= n when all were cached).
// A row larger than the whole budget is still materialized.
func (c *Cache) Get(row, n int) (data []float64, start int) {
	h := &c.entries[row]
	cached := len(h.data)
	if cached > 0 {
		c.unlink(h)
	}
	if more := int64(n - cached); more > 0 {
		for c.size < more && c.lru.next != &c.lru {
			old := c.lru.next
			c.unlink(old)
			c.size += int64(len(old.data))
			old.data = nil
		}
		grown := make([]float64, n)
		copy(grown, h.data)
		h.data = grown
		c.size -= more
	} else {
		cached = n
	}
	c.link(h)
	return h.data[:n], cached
}

// Swap exchanges columns i and j in every cached row. A row that covers only
// the smaller of the two is cut back to it.
func (c *Cache) Swap(i, j int) {
	if i == j {
		return
	}
	if i > j {
		i, j = j, i
	}
	for h := c.lru.next; h != &c.lru; {
		next := h.next
		if len(h.data) > i {
			if len(h.data) > j {
				h.data[i], h.data[j] = h.data[j], h.data[i]
			} else {
				c.size += int64(len(h.data) - i)
				h.data = h.data[:i]
				if i == 0 {
					c.unlink(h)
					h.data = nil
				}
			}
		}
		h = next
	}
}
