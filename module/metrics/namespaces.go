package metrics

const namespaceLazyres = "lazyres"

const (
	subsystemResolver     = "resolver"
	subsystemLocks        = "locks"
	subsystemSessionCache = "session_cache"
)
