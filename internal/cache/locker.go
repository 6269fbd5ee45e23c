package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrFailureScript atomically increments the failure counter,
// setting its TTL only on the creating call so repeated failures
// within the cycle window don't keep resetting the expiry.
var incrFailureScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// consumeVCodeScript atomically reads-then-deletes a one-shot code so
// concurrent verify attempts can't both observe it as present.
var consumeVCodeScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if v then
	redis.call("DEL", KEYS[1])
end
return v
`)

// Locker implements credential.Locker against Redis, grounded on the teacher's
// common/mredis Set/Get wrapper pattern generalized to scripted
// atomic ops where a plain SET/GET would race.
type Locker struct {
	Conn *Connection
}

func lockKey(confID, ak string) string   { return fmt.Sprintf("lock:%s:%s", confID, ak) }
func failKey(confID, ak string) string   { return fmt.Sprintf("fail:%s:%s", confID, ak) }
func vcodeKey(confID, ak string) string  { return fmt.Sprintf("vcode:%s:%s", confID, ak) }

func (l *Locker) IsLocked(ctx context.Context, confID, ak string) (bool, error) {
	client, err := l.Conn.GetClient(ctx)
	if err != nil {
		return false, err
	}

	n, err := client.Exists(ctx, lockKey(confID, ak)).Result()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (l *Locker) Lock(ctx context.Context, confID, ak string, ttl int) error {
	client, err := l.Conn.GetClient(ctx)
	if err != nil {
		return err
	}

	return client.Set(ctx, lockKey(confID, ak), "1", time.Duration(ttl)*time.Second).Err()
}

func (l *Locker) IncrFailure(ctx context.Context, confID, ak string, ttlSec int) (int, error) {
	client, err := l.Conn.GetClient(ctx)
	if err != nil {
		return 0, err
	}

	res, err := incrFailureScript.Run(ctx, client, []string{failKey(confID, ak)}, ttlSec).Int()
	if err != nil {
		return 0, err
	}

	return res, nil
}

func (l *Locker) ResetFailure(ctx context.Context, confID, ak string) error {
	client, err := l.Conn.GetClient(ctx)
	if err != nil {
		return err
	}

	return client.Del(ctx, failKey(confID, ak)).Err()
}

func (l *Locker) SetVCode(ctx context.Context, confID, ak, code string, ttlSec int) error {
	client, err := l.Conn.GetClient(ctx)
	if err != nil {
		return err
	}

	return client.Set(ctx, vcodeKey(confID, ak), code, time.Duration(ttlSec)*time.Second).Err()
}

func (l *Locker) ConsumeVCode(ctx context.Context, confID, ak string) (string, bool, error) {
	client, err := l.Conn.GetClient(ctx)
	if err != nil {
		return "", false, err
	}

	res, err := consumeVCodeScript.Run(ctx, client, []string{vcodeKey(confID, ak)}).Result()
	if err == redis.Nil {
		return "", false, nil
	}

	if err != nil {
		return "", false, err
	}

	if res == nil {
		return "", false, nil
	}

	code, ok := res.(string)
	if !ok {
		return "", false, nil
	}

	return code, true, nil
}
