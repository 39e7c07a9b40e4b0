package sqlite

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Register the sqlite-vec extension with the mattn/go-sqlite3 driver
	// so vec0 virtual tables and vec_distance_cosine are available on
	// every connection.
	vec.Auto()
}
