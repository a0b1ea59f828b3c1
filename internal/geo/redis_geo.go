package geo

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/load-matching/internal/models"
)

// RedisIndex implements DriverIndex on Redis GEO commands so multiple
// processes share one view of driver positions.
type RedisIndex struct {
	client *redis.Client
	key    string
	ctx    context.Context
}

func NewRedisIndex(addr, password, key string) *RedisIndex {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisIndex{client: c, key: key, ctx: context.Background()}
}

func (r *RedisIndex) Upsert(u models.DriverLocationUpdate) {
	_, _ = r.client.GeoAdd(r.ctx, r.key, &redis.GeoLocation{
		Longitude: u.Location.Lon,
		Latitude:  u.Location.Lat,
		Name:      u.DriverID,
	}).Result()
	_ = r.client.HSet(r.ctx, metaKey(u.DriverID), map[string]interface{}{
		"status":  string(u.Status),
		"updated": time.Now().UTC().Format(time.RFC3339),
	}).Err()
}

func (r *RedisIndex) Nearby(lat, lon, radiusKm float64, limit int) []models.DriverLocationUpdate {
	if radiusKm <= 0 {
		radiusKm = 500
	}
	res, err := r.client.GeoRadius(r.ctx, r.key, lon, lat, &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: true,
		WithDist:  true,
		Count:     limit,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil
	}
	out := make([]models.DriverLocationUpdate, 0, len(res))
	for _, g := range res {
		u := models.DriverLocationUpdate{
			DriverID: g.Name,
			Location: models.Location{Lat: g.Latitude, Lon: g.Longitude},
		}
		if m, err := r.client.HGetAll(r.ctx, metaKey(g.Name)).Result(); err == nil {
			if v, ok := m["status"]; ok {
				u.Status = models.DriverStatus(v)
			}
			if v, ok := m["updated"]; ok {
				if ts, err := time.Parse(time.RFC3339, v); err == nil {
					u.At = ts
				}
			}
		}
		if u.Status == models.DriverOffline {
			continue
		}
		out = append(out, u)
	}
	return out
}

func metaKey(id string) string { return "driver:meta:" + id }

// Remove drops a driver from the index, e.g. when they go offline.
func (r *RedisIndex) Remove(driverID string) {
	_ = r.client.ZRem(r.ctx, r.key, driverID).Err()
	_ = r.client.Del(r.ctx, metaKey(driverID)).Err()
}
