package geostore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/rendezvous/internal/models"
)

// RedisStore implements Store on Redis GEO commands. All published keys
// live as members of a single geo set so radius queries see every
// participant.
type RedisStore struct {
	client  *redis.Client
	key     string
	pollInt time.Duration
}

func NewRedisStore(addr, password, key string) *RedisStore {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisStore{client: c, key: key, pollInt: time.Second}
}

func (r *RedisStore) SetLocation(ctx context.Context, key string, c models.Coord) error {
	_, err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{Longitude: c.Lng, Latitude: c.Lat, Name: key}).Result()
	return err
}

func (r *RedisStore) RemoveLocation(ctx context.Context, key string) error {
	return r.client.ZRem(ctx, r.key, key).Err()
}

func (r *RedisStore) GetLocation(ctx context.Context, key string) (models.Coord, bool, error) {
	pos, err := r.client.GeoPos(ctx, r.key, key).Result()
	if err != nil {
		return models.Coord{}, false, err
	}
	if len(pos) == 0 || pos[0] == nil {
		return models.Coord{}, false, nil
	}
	return models.Coord{Lat: pos[0].Latitude, Lng: pos[0].Longitude}, true, nil
}

// SubscribeGeoQuery polls GEORADIUS and synthesizes enter/exit/move
// events from membership changes between polls.
func (r *RedisStore) SubscribeGeoQuery(ctx context.Context, center models.Coord, radiusKm float64) Query {
	qctx, cancel := context.WithCancel(ctx)
	q := &redisQuery{
		events: make(chan Event, 64),
		cancel: cancel,
	}
	go q.run(qctx, r, center, radiusKm)
	return q
}

type redisQuery struct {
	events chan Event
	cancel context.CancelFunc
}

func (q *redisQuery) Events() <-chan Event { return q.events }
func (q *redisQuery) Close()               { q.cancel() }

func (q *redisQuery) run(ctx context.Context, r *RedisStore, center models.Coord, radiusKm float64) {
	defer close(q.events)

	inside := make(map[string]models.Coord)
	ready := false
	ticker := time.NewTicker(r.pollInt)
	defer ticker.Stop()

	for {
		res, err := r.client.GeoRadius(ctx, r.key, center.Lng, center.Lat, &redis.GeoRadiusQuery{
			Radius: radiusKm, Unit: "km", WithCoord: true, Sort: "ASC",
		}).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.send(Event{Kind: EventError, Err: err})
		} else {
			seen := make(map[string]bool, len(res))
			for _, g := range res {
				c := models.Coord{Lat: g.Latitude, Lng: g.Longitude}
				seen[g.Name] = true
				if prev, ok := inside[g.Name]; !ok {
					q.send(Event{Kind: EventEntered, Key: g.Name, Coord: c})
				} else if prev != c {
					q.send(Event{Kind: EventMoved, Key: g.Name, Coord: c})
				}
				inside[g.Name] = c
			}
			for key := range inside {
				if !seen[key] {
					delete(inside, key)
					q.send(Event{Kind: EventExited, Key: key})
				}
			}
			if !ready {
				ready = true
				q.send(Event{Kind: EventReady})
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (q *redisQuery) send(e Event) {
	select {
	case q.events <- e:
	default:
	}
}
