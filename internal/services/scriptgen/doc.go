// Package scriptgen talks to the hosted language model that writes episode
// scripts, series outlines, and briefing topics. Transient transport failures
// and rate limits are retried with exponential backoff and Retry-After
// awareness; everything else surfaces immediately as services.ErrGeneration.
package scriptgen
