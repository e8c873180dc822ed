package anthropic

// CachedSystem returns a single system block with an ephemeral cache
// breakpoint. Stage instructions are identical across every client in a
// job, so the cached prefix is reused for the whole batch.
func CachedSystem(text, ttl string) []SystemBlock {
	if text == "" {
		return nil
	}
	return []SystemBlock{{Text: text, CacheControl: &CacheControl{TTL: ttl}}}
}
