// Package commands defines the hush CLI.
//
// Commands
//
//   - serve          Run the room server
//   - secret         Print a fresh random room secret
//   - room create    Create a pair or group room and print its share link
//   - chat           Join a room and chat from the terminal
//
// # Implementation
//
// serve builds the store, the realtime hub, the expiry sweeper and the HTTP
// router from one Config. The client commands only need --server; the room
// secret stays on the local machine.
package commands
