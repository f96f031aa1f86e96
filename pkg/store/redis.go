package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/go-redis/redis/v8"
)

// Redis stores each collection as a set of document IDs plus one hash per
// document. Hash field values are JSON-encoded so numbers, booleans and
// arrays survive the round trip.
//
//	<prefix><collection>        SET  of ids
//	<prefix><collection>:<id>   HASH field -> JSON value
//
// A document exists when its ID is in the collection set; its hash may be
// empty.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, keyPrefix string) *Redis {
	return &Redis{client: client, prefix: keyPrefix}
}

// OpenRedis connects to the configured server and pings it.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password(),
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, fmt.Errorf("store: redis ping %s: %w", cfg.Addr, err)
	}
	return NewRedis(client, cfg.KeyPrefix), nil
}

func (r *Redis) setKey(collection string) string { return r.prefix + collection }

func (r *Redis) docKey(collection, id string) string {
	return r.prefix + collection + ":" + id
}

// List returns every document in collection, fetched with one pipelined
// HGETALL per ID.
func (r *Redis) List(ctx context.Context, collection string) ([]Document, error) {
	ids, err := r.client.SMembers(ctx, r.setKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("store: redis list %q: %w", collection, err)
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		return []Document{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringStringMapCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, r.docKey(collection, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("store: redis list %q: %w", collection, err)
	}

	out := make([]Document, 0, len(ids))
	for i, id := range ids {
		out = append(out, Document{ID: id, Fields: decodeHash(cmds[i].Val())})
	}
	return out, nil
}

// Get returns one document or ErrNotFound.
func (r *Redis) Get(ctx context.Context, collection, id string) (Document, error) {
	ok, err := r.client.SIsMember(ctx, r.setKey(collection), id).Result()
	if err != nil {
		return Document{}, fmt.Errorf("store: redis get %q/%q: %w", collection, id, err)
	}
	if !ok {
		return Document{}, ErrNotFound
	}
	raw, err := r.client.HGetAll(ctx, r.docKey(collection, id)).Result()
	if err != nil {
		return Document{}, fmt.Errorf("store: redis get %q/%q: %w", collection, id, err)
	}
	return Document{ID: id, Fields: decodeHash(raw)}, nil
}

// Update sets only the given hash fields. The membership check and the write
// run under WATCH so a concurrent delete cannot resurrect the document.
func (r *Redis) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	values, err := encodeHash(fields)
	if err != nil {
		return fmt.Errorf("store: redis update %q/%q: %w", collection, id, err)
	}
	setKey := r.setKey(collection)
	docKey := r.docKey(collection, id)

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		ok, err := tx.SIsMember(ctx, setKey, id).Result()
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		if len(values) == 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, docKey, values...)
			return nil
		})
		return err
	}, setKey)
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: redis update %q/%q: %w", collection, id, err)
	}
	return nil
}

// Put creates the document if its ID is not yet in the collection set.
func (r *Redis) Put(ctx context.Context, collection, id string, fields map[string]any) error {
	values, err := encodeHash(fields)
	if err != nil {
		return fmt.Errorf("store: redis put %q/%q: %w", collection, id, err)
	}
	setKey := r.setKey(collection)
	docKey := r.docKey(collection, id)

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		ok, err := tx.SIsMember(ctx, setKey, id).Result()
		if err != nil || ok {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SAdd(ctx, setKey, id)
			if len(values) > 0 {
				pipe.HSet(ctx, docKey, values...)
			}
			return nil
		})
		return err
	}, setKey)
	if err != nil {
		return fmt.Errorf("store: redis put %q/%q: %w", collection, id, err)
	}
	return nil
}

// Close closes the underlying client.
func (r *Redis) Close() error { return r.client.Close() }

// encodeHash flattens fields into HSET arguments with JSON values, in key
// order so the command is deterministic.
func encodeHash(fields map[string]any) ([]interface{}, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([]interface{}, 0, len(fields)*2)
	for _, k := range keys {
		b, err := json.Marshal(fields[k])
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", k, err)
		}
		values = append(values, k, string(b))
	}
	return values, nil
}

// decodeHash reverses encodeHash. Values that are not valid JSON (written by
// another tool, say) are kept as plain strings.
func decodeHash(raw map[string]string) map[string]any {
	out := make(map[string]any, len(raw))
	for k, s := range raw {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			out[k] = s
			continue
		}
		out[k] = v
	}
	return out
}
