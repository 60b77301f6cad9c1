// Package feed publishes the podcast RSS document. The feed is always
// rebuilt in full from the episode catalog and swapped into place atomically.
package feed
