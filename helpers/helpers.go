package helpers

import "math/rand"

const (
	minReqID = 10000
	maxReqID = 9999999
)

// RandomReqID returns an id for websocket control requests.
func RandomReqID() int {
	return minReqID + rand.Intn(maxReqID-minReqID)
}
