// Package series sequences multi-episode production plans. Steps run
// strictly in order and the first failing step ends the series for good;
// partial results stay published.
package series
