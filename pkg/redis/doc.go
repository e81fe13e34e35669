// Package redis connects to Redis and provides the distributed lock that
// keeps dispatch cycles from overlapping across service instances.
//
// The package wraps go-redis and adds:
//
//   - Connect, which retries the connection using the supplied Config.
//   - Locker, a SET NX PX lock with token-checked release, satisfying
//     queue.Locker.
//   - Healthcheck, for readiness probes.
//
// Configuration is described by Config whose fields are populated from
// environment variables via github.com/caarlos0/env. An empty REDIS_URL
// disables Redis; callers check Config.Enabled before connecting.
//
// # Usage
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	dispatcher, _ := queue.NewDispatcher(repo,
//	    queue.WithCycleLocker(redis.NewLocker(client), "levelqueue:dispatch", 5*time.Minute),
//	)
package redis
