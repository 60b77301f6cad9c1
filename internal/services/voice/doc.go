// Package voice renders dialogue lines to audio through the hosted
// text-to-speech API, pacing requests with a client-side rate limiter.
package voice
