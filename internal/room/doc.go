// Package room owns a room's lifecycle and its admission gate.
//
// A room is created Active with a short TTL, or Active and permanent when the
// creator presents the server's override credential. It leaves Active either
// through Destroy or by expiring in the store; the service never polls for
// expiry and reads absence as "already destroyed".
//
// Admission is a read-then-write over the store's connected set. Two joins
// racing for the last seat can both pass the capacity check, so a room may end
// up slightly over capacity. Config.StrictAdmission switches to a conditional
// insert bounded by capacity, run under the room's row lock on postgres and
// the single writer on sqlite, which closes that window at the cost of one
// extra count per join.
//
// The new member and, for the first joiner, the owner claim are written in
// one store transaction, so a failed join leaves neither behind.
package room
