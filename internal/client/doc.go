// Package client is the participant side of a room: it seals outgoing
// messages on the caller's ratchet, keeps one chain per observed sender and
// rebuilds every chain from the server's log whenever the cheap path is not
// possible.
//
// The server only ever sees ciphertext, nonces, step numbers and sender
// tokens. The room secret never leaves this package.
package client
