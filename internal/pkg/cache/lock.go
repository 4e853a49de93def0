package cache

import (
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AcquireLock takes a best-effort lease via SET NX. The returned token must
// be passed back to ReleaseLock so a lease that outlived its TTL cannot be
// released by a later holder. The processor uses this to keep batch runs for
// a tenant mutually exclusive across instances.
func AcquireLock(key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := GetClient().SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// releaseScript deletes the lock only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ReleaseLock releases a lease previously acquired with AcquireLock.
func ReleaseLock(key, token string) error {
	return releaseScript.Run(ctx, GetClient(), []string{key}, token).Err()
}
