// Package redis provides a go-redis client component and SlotLock, a
// distributed single-holder lock that serializes pipeline runs across
// replicas sharing the fixed storage key and job name.
//
//	lock := redis.NewSlotLock(client.Unwrap(), client.Key("slot:transcription_job"), redis.LockConfig{TTL: 15 * time.Minute}, log)
//	release, err := lock.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer release()
package redis
