package app

import "errors"

// Operation errors reported back to the requesting peer as typed error
// messages. None of them terminate the connection.
var (
	ErrInvalidDirection    = errors.New("invalid transport direction")
	ErrTransportNotFound   = errors.New("transport not found")
	ErrProducerNotFound    = errors.New("producer not found")
	ErrConsumerNotFound    = errors.New("consumer not found")
	ErrCannotConsume       = errors.New("incompatible rtp capabilities")
	ErrNoRecvTransport     = errors.New("no recv transport")
	ErrRecvTransportExists = errors.New("recv transport already exists")
	ErrPeerGone            = errors.New("peer session gone")
)
