// Package redis caches customer lookups in Redis.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/tailor-orders/internal/domain/customer"
)

const keyPrefix = "customer:phone:"

var _ customer.Cache = (*CustomerCache)(nil)

// CustomerCache implements customer.Cache on a Redis client.
type CustomerCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// Connect parses url, pings the server and returns a client.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

// NewCustomerCache returns a cache storing entries for ttl.
func NewCustomerCache(client redis.UniversalClient, ttl time.Duration) *CustomerCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CustomerCache{client: client, ttl: ttl}
}

func (c *CustomerCache) Get(ctx context.Context, phone string) (*customer.Customer, bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+phone).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get")
	}
	v, err := decodeCustomer(data)
	if err != nil {
		return nil, false, errors.Wrap(err, "decode cached customer")
	}
	return v, true, nil
}

func (c *CustomerCache) Set(ctx context.Context, v *customer.Customer) error {
	if err := c.client.Set(ctx, keyPrefix+v.Phone, encodeCustomer(v), c.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

func (c *CustomerCache) Delete(ctx context.Context, phone string) error {
	if err := c.client.Del(ctx, keyPrefix+phone).Err(); err != nil {
		return errors.Wrap(err, "redis del")
	}
	return nil
}

func encodeCustomer(v *customer.Customer) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(v.ID)
	e.FieldStart("phone")
	e.Str(v.Phone)
	e.FieldStart("name")
	e.Str(v.Name)
	e.FieldStart("address")
	e.Str(v.Address)
	e.FieldStart("created_at")
	e.Str(v.CreatedAt.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()
	return e.Bytes()
}

func decodeCustomer(data []byte) (*customer.Customer, error) {
	var v customer.Customer
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			v.ID, err = d.Int64()
		case "phone":
			v.Phone, err = d.Str()
		case "name":
			v.Name, err = d.Str()
		case "address":
			v.Address, err = d.Str()
		case "created_at":
			var s string
			if s, err = d.Str(); err == nil {
				v.CreatedAt, err = time.Parse(time.RFC3339Nano, s)
			}
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}
