package auth

import "golang.org/x/crypto/bcrypt"

// HashIngestKey hashes the shared ingest key for configuration storage.
func HashIngestKey(key string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyIngestKey checks a presented ingest key against its stored hash.
func VerifyIngestKey(hash, key string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
}
