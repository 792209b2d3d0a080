// Package redissink appends the chunks of a writable stream to a Redis stream.
//
// Every chunk becomes one XADD entry whose Config.Field holds the chunk. The
// sink pings Redis on start so that an unreachable server errors the stream
// before any chunk is accepted for writing. On Close an optional end marker
// entry lets consumers detect the end of the stream; on Abort the key can be
// deleted so consumers never see a partial stream.
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	sink, err := redissink.New[[]byte](rdb, redissink.DefaultConfig("events"))
//	if err != nil {
//		return err
//	}
//	stream, err := writable.New[[]byte](sink)
//
// Failed commands are reported as *RedisError, which unwraps to the
// go-redis error.
package redissink
