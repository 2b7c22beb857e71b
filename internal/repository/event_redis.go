package repository

import (
	"context"
	"encoding/json"

	"github.com/Baptiste-Yucca/rent2repay/internal/model"
	"github.com/redis/go-redis/v9"
)

// RedisEventRepo 把事件写进一个定长的 redis list，最新的在最前面。
type RedisEventRepo struct {
	client  *redis.Client
	listKey string
	listMax int
}

func NewRedisEventRepo(client *redis.Client, listKey string, listMax int) *RedisEventRepo {
	if listKey == "" {
		listKey = "r2r_events"
	}
	if listMax <= 0 {
		listMax = 10000
	}
	return &RedisEventRepo{
		client:  client,
		listKey: listKey,
		listMax: listMax,
	}
}

func (r *RedisEventRepo) Insert(ctx context.Context, entry *model.Event) error {
	if entry == nil {
		return nil
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.listKey, payload)
	pipe.LTrim(ctx, r.listKey, 0, int64(r.listMax-1))
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisEventRepo) List(ctx context.Context, user string, limit int) ([]*model.Event, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	fetch := limit * 5
	if fetch < 100 {
		fetch = 100
	}
	if fetch > r.listMax {
		fetch = r.listMax
	}

	raw, err := r.client.LRange(ctx, r.listKey, 0, int64(fetch-1)).Result()
	if err != nil {
		return nil, err
	}

	results := make([]*model.Event, 0, limit)
	for _, item := range raw {
		var entry model.Event
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		if user != "" && entry.User != user {
			continue
		}
		results = append(results, &entry)
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}
