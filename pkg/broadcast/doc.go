// Package broadcast provides a typed in-process publish/subscribe channel.
//
// It decouples event producers from consumers: the producer broadcasts, each
// subscriber receives on its own buffered channel. Sends never block the
// producer; when a subscriber's buffer is full the message is dropped for that
// subscriber. This makes the broadcaster safe to call from hot paths.
package broadcast
