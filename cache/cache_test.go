/*
Copyright 2025 Courtside Authors.

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

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache([]string{mr.Addr()})
	require.NoError(t, err)
	return c
}

func TestSetAndGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	type entity struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	}

	err := c.Set(ctx, "event:9", &entity{ID: 9, Title: "City Open"}, time.Minute)
	assert.NoError(t, err)

	var got entity
	err = c.Get(ctx, "event:9", &got)
	assert.NoError(t, err)
	assert.Equal(t, int64(9), got.ID)
	assert.Equal(t, "City Open", got.Title)
}

// A miss leaves the target untouched and returns nil, so callers can use
// the zero value as the "not cached" signal.
func TestGetMissIsNotAnError(t *testing.T) {
	c := newTestCache(t)

	var got struct{ ID int64 }
	err := c.Get(context.Background(), "event:missing", &got)
	assert.NoError(t, err)
	assert.Zero(t, got.ID)
}

func TestDelete(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	err := c.Set(ctx, "pairing:3", map[string]interface{}{"id": 3}, time.Minute)
	assert.NoError(t, err)

	err = c.Delete(ctx, "pairing:3")
	assert.NoError(t, err)

	var got map[string]interface{}
	err = c.Get(ctx, "pairing:3", &got)
	assert.NoError(t, err)
	assert.Nil(t, got)
}
