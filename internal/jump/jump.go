// Package jump maps routing keys onto a fixed number of buckets.
package jump

import "github.com/zeebo/xxh3"

// Hash implements Google's "Jump" consistent hash (https://arxiv.org/abs/1406.2294).
// Growing numBuckets from n to n+1 moves only 1/(n+1) of the keys.
// It returns 0 when numBuckets <= 0.
func Hash(key uint64, numBuckets int) int {
	if numBuckets <= 0 {
		return 0
	}

	var b int64 = -1
	var j int64

	for j < int64(numBuckets) {
		b = j
		key = key*2862933555777941757 + 1
		j = int64(float64(b+1) * (float64(int64(1)<<31) / float64((key>>33)+1)))
	}

	return int(b)
}

// String hashes key with xxh3 and places it with Hash.
func String(key string, numBuckets int) int {
	return Hash(xxh3.HashString(key), numBuckets)
}
