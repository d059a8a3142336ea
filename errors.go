// errors.go
package main

import "errors"

var (
	ErrUnknownEvent     = errors.New("unknown event")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrUnbound          = errors.New("connection has no announced participant")
	ErrRelayStopped     = errors.New("relay stopped")
	ErrGeocoder         = errors.New("geocoder request failed")
)
