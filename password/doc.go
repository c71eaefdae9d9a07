// Package password hashes principal passwords with Argon2id.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters so the
// login path can rehash after a successful verification.
//
// The package never stores passwords and never logs plaintext or parameters.
package password
