package client

import "fmt"

// BoardChangeError reports a failed in-memory mirror operation, such as
// removing a card that is not present. It is distinct from transport
// errors: the local state, not the network, refused the change.
type BoardChangeError struct {
	Op  string
	Err error
}

func (e *BoardChangeError) Error() string {
	return fmt.Sprintf("board change %s: %v", e.Op, e.Err)
}

func (e *BoardChangeError) Unwrap() error {
	return e.Err
}

// TransportError reports a network or connection failure during a mutation
// call or subscription setup. The facade never retries on its own.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
