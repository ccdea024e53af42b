/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package redis_db

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected *redis.Options
		wantTLS  bool
		wantErr  bool
	}{
		{
			name:     "simple docker style",
			url:      "redis:6379",
			expected: &redis.Options{Addr: "redis:6379"},
		},
		{
			name:     "redis url with password",
			url:      "redis://:password123@localhost:6379",
			expected: &redis.Options{Addr: "localhost:6379", Password: "password123"},
		},
		{
			name:     "redis url with bare password",
			url:      "redis://password123@localhost:6379",
			expected: &redis.Options{Addr: "localhost:6379", Password: "password123"},
		},
		{
			name:     "tls url",
			url:      "rediss://:secret@cache.example.com:6380",
			expected: &redis.Options{Addr: "cache.example.com:6380", Password: "secret"},
			wantTLS:  true,
		},
		{
			name:    "empty",
			url:     "  ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRedisURL(tt.url, false)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected.Addr, got.Addr)
			assert.Equal(t, tt.expected.Password, got.Password)
			assert.Equal(t, tt.wantTLS, got.TLSConfig != nil)
		})
	}
}

func TestParseRedisURLSkipTLSVerify(t *testing.T) {
	got, err := ParseRedisURL("rediss://:secret@cache.example.com:6380", true)
	require.NoError(t, err)
	require.NotNil(t, got.TLSConfig)
	assert.True(t, got.TLSConfig.InsecureSkipVerify)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	_, err := NewRedisClient(nil, false)
	assert.Error(t, err)

	client, err := NewRedisClient([]string{mr.Addr()}, false)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.Client().Set(ctx, "test_key", "test_value", time.Minute).Err())
	got, err := client.Client().Get(ctx, "test_key").Result()
	require.NoError(t, err)
	assert.Equal(t, "test_value", got)
}

func TestNewRedisClientUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient([]string{addr}, false)
	assert.Error(t, err)
}
