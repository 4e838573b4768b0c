package reconcile

import "errors"

var (
	// ErrNoImages is returned when a batch contains no images.
	ErrNoImages = errors.New("no images submitted")
	// ErrUnreadableImage marks an image that could not be decoded.
	ErrUnreadableImage = errors.New("unreadable image")
)
