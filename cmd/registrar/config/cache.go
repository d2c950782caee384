package config

import (
	"github.com/redis/go-redis/v9"
)

// cachingConf configures the shared cache in front of the entity
// configuration; the in-memory cache is used if no redis address is set
type cachingConf struct {
	RedisAddr string `yaml:"redis_addr"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	RedisDB   int    `yaml:"redis_db"`
}

// RedisOptions returns the redis.Options for the configured redis server or
// nil if redis is not used
func (c cachingConf) RedisOptions() *redis.Options {
	if c.RedisAddr == "" {
		return nil
	}
	return &redis.Options{
		Addr:     c.RedisAddr,
		Username: c.Username,
		Password: c.Password,
		DB:       c.RedisDB,
	}
}
