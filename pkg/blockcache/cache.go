// Copyright 2021 Airbus Defence and Space
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package blockcache

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/airbusgeo/blockreader"
	lru "github.com/hashicorp/golang-lru"
)

// Window identifies a block of a dataset
type Window struct {
	Band          int
	X0, Y0        int
	Width, Height int
}

// Cacher is the interface that wraps block caching functionality
//
// Add inserts the block read from window of the dataset identified by key.
//
// Get fetches the block of key at window. It returns the block and wether it
// was found in the cache or not
//
// PurgeKey empties the underlying cache for the given key
type Cacher interface {
	Add(key string, w Window, buf blockreader.Buffer)
	Get(key string, w Window) (blockreader.Buffer, bool)
	PurgeKey(key string)
	Purge()
}

// Cache is an LRU Cacher holding a fixed number of blocks
type Cache struct {
	c      *lru.Cache
	random string
}

var _ Cacher = &Cache{}

// NewCache creates a Cache holding at most entries blocks
func NewCache(entries uint) (*Cache, error) {
	c, err := lru.New(int(entries))
	if err != nil {
		return nil, fmt.Errorf("lru.new: %w", err)
	}
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	var letterRunes = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	b := make([]rune, 5)
	for i := range b {
		b[i] = letterRunes[r.Intn(len(letterRunes))]
	}
	return &Cache{c: c, random: string(b)}, nil
}

func (cg *Cache) Add(key string, w Window, buf blockreader.Buffer) {
	cg.c.Add(skey(key, cg.random, w), buf)
}

func (cg *Cache) Get(key string, w Window) (blockreader.Buffer, bool) {
	cb, ok := cg.c.Get(skey(key, cg.random, w))
	if !ok {
		return blockreader.Buffer{}, false
	}
	return cb.(blockreader.Buffer), true
}

// Len returns the number of cached blocks
func (cg *Cache) Len() int {
	return cg.c.Len()
}

func (cg *Cache) PurgeKey(prefix string) {
	prefix = fmt.Sprintf("%s-%s-", prefix, cg.random)
	for _, k := range cg.c.Keys() {
		if strings.HasPrefix(k.(string), prefix) {
			cg.c.Remove(k)
		}
	}
}

func (cg *Cache) Purge() {
	cg.c.Purge()
}

func skey(key string, random string, w Window) string {
	return fmt.Sprintf("%s-%s-%d-%d-%d-%d-%d", key, random, w.Band, w.X0, w.Y0, w.Width, w.Height)
}
