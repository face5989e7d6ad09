// Package password hashes and verifies staff credentials with argon2id.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Salt and hash are standard base64 without padding, matching the reference
// argon2 CLI. [Hasher.NeedsRehash] reports hashes produced with weaker parameters
// so callers can re-hash after a successful login.
package password
