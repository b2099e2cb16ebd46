// Package gen contains a bunch of generic functions that will probably be in the Go std lib someday
package gen

// Return the index of elem in slice, or -1 if it is not present
func IndexOf[T comparable](slice []T, elem T) int {
	for i := range slice {
		if slice[i] == elem {
			return i
		}
	}
	return -1
}

// Remove slice[i] by swapping in the last element. Order is not preserved.
func DeleteFromSliceUnordered[T any](slice []T, i int) []T {
	last := len(slice) - 1
	slice[i] = slice[last]
	var zero T
	slice[last] = zero
	return slice[:last]
}

// DrainChannelIntoSlice reads from a channel until it is empty, and returns all items in a slice
func DrainChannelIntoSlice[T any](ch chan T) []T {
	slice := make([]T, 0, len(ch))
	for {
		select {
		case v := <-ch:
			slice = append(slice, v)
		default:
			return slice
		}
	}
}
