// Package regcache caches registry lookups for a bounded staleness window.
//
// The cache is an explicit object owned by the caller and injected into the
// resolver; there is no package-level state. Writers that go around it (bulk
// import, direct SQL) call Invalidate when they finish.
package regcache
