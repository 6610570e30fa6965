package cache

// ModuleLocks returns the number of module locks in use.
func (c *Cache) ModuleLocks() int {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	return len(c.locks)
}
