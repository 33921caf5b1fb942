// Package matching decides which label template applies to a device.
//
// A Resolver runs a fixed cascade and stops at the first step that yields a
// template:
//
//  1. model mapping (exact model string)          model_match     1.0
//  2. type mapping (Classify(model))              type_match      0.8
//  3. tenant template with matching product type  type_match      0.75
//  4. tenant default template                     user_default    0.5
//  5. global default template                     system_default  0.3
//  6. lowest-ID template visible to the tenant    fallback        0.1
//
// Step order decides precedence; confidence is informational only, which is
// why step 3 scores below step 2 yet can only run after it. When no template
// is visible at all, ErrNoTemplatesAvailable is returned. That error is never
// cached.
//
// Results are memoised in a Cache for a fixed TTL measured from insertion.
// Catalog edits do not invalidate cached results; they become visible once
// the entry expires or an operator purges the cache.
//
// Two Cache implementations exist: MemoryCache, a sharded in-process map
// with lazy expiry and an optional sweeper, and RedisCache, which stores JSON
// with a Redis TTL so several instances share results.
//
// Usage:
//
//	cache := matching.NewMemoryCache(30 * time.Minute)
//	go cache.Run(ctx, time.Minute)
//	resolver := matching.NewResolver(catalogRepo, cache)
//	result, err := resolver.Resolve(ctx, device, tenantID)
package matching
